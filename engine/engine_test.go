package engine_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jocic-m/mrengine/engine"
	"github.com/jocic-m/mrengine/examples/meanvar"
	"github.com/jocic-m/mrengine/examples/regression"
	"github.com/jocic-m/mrengine/examples/wordcount"
	"github.com/jocic-m/mrengine/internal/shared/logging"
	"github.com/jocic-m/mrengine/pkg/mr"
)

func newTestEngine(cfg engine.Config) *engine.Engine {
	return engine.New(cfg, logging.NopLogger{})
}

func records(lines ...string) []mr.Record {
	recs := make([]mr.Record, 0, len(lines))
	for i, line := range lines {
		recs = append(recs, mr.Record{Key: "input:" + strconv.Itoa(i+1), Value: line})
	}
	return recs
}

func toMap(t *testing.T, output []mr.KeyValue) map[string]string {
	t.Helper()
	m := make(map[string]string, len(output))
	for _, kv := range output {
		require.NotContains(t, m, kv.Key)
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSubmit_WordCount(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 3})
	job := wordcount.New(0)

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "wordcount",
		Map:     job.Map,
		Reduce:  job.Reduce,
		Records: records("the cat sat", "the dog ran", "cat and dog"),
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)

	counts := toMap(t, output)
	require.Equal(t, "2", counts["the"])
	require.Equal(t, "2", counts["cat"])
	require.Equal(t, "2", counts["dog"])
	require.Equal(t, "1", counts["sat"])
	require.Equal(t, "1", counts["ran"])
	require.Equal(t, "1", counts["and"])
}

func TestSubmit_WordCountMinLengthFiltersEverything(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})
	job := wordcount.New(4)

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "wordcount",
		Map:     job.Map,
		Reduce:  job.Reduce,
		Records: records("the cat sat", "the dog ran"),
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Empty(t, output)
}

func TestSubmit_MeanVariance(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 3})

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "meanvar",
		Map:     meanvar.Map,
		Reduce:  meanvar.Reduce,
		Records: records("2", "4", "6"),
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Len(t, output, 1)
	require.Equal(t, meanvar.Key, output[0].Key)
	require.Equal(t, "4.0000,2.6667", output[0].Value)
}

func TestSubmit_EmptyInput(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})
	job := wordcount.New(0)

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:   "wordcount",
		Map:    job.Map,
		Reduce: job.Reduce,
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Empty(t, output)
}

func TestSubmit_MissingFunctions(t *testing.T) {
	e := newTestEngine(engine.Config{})

	_, err := e.Submit(context.Background(), engine.JobSpec{Name: "broken"})

	var invalid *mr.InvalidInputError
	require.ErrorAs(t, err, &invalid)
}

func TestSubmit_UserErrorFailsWithoutRetry(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2, MaxAttempts: 3})

	var mapCalls atomic.Int32
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		mapCalls.Add(1)
		return nil, strconv.ErrSyntax
	}
	reduceFn := func(key string, values []string) (mr.KeyValue, error) {
		return mr.KeyValue{Key: key, Value: "unreachable"}, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:       "fails",
		Map:        mapFn,
		Reduce:     reduceFn,
		Records:    records("only record"),
		NumMappers: 1,
	})
	require.NoError(t, err)

	_, err = handle.Await(context.Background())

	var userErr *mr.UserFunctionError
	require.ErrorAs(t, err, &userErr)
	require.Equal(t, "map", userErr.Phase)
	require.ErrorIs(t, err, strconv.ErrSyntax)
	require.Equal(t, int32(1), mapCalls.Load())
	require.Equal(t, engine.StatusFailed, handle.Status())
}

func TestSubmit_StragglerRetriedOnAnotherWorker(t *testing.T) {
	e := newTestEngine(engine.Config{
		NumWorkers:   3,
		MaxAttempts:  3,
		TaskTimeout:  50 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
	})

	var mapCalls atomic.Int32
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		if mapCalls.Add(1) == 1 {
			// First attempt stalls past the heartbeat deadline.
			time.Sleep(250 * time.Millisecond)
		}
		return []mr.KeyValue{{Key: value, Value: "1"}}, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:       "straggler",
		Map:        mapFn,
		Reduce:     wordcount.Reduce,
		Records:    records("stalled"),
		NumMappers: 1,
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, []mr.KeyValue{{Key: "stalled", Value: "1"}}, output)
	require.Equal(t, int32(2), mapCalls.Load())
}

func TestSubmit_SingleWorkerDeathDoesNotStallJob(t *testing.T) {
	e := newTestEngine(engine.Config{
		NumWorkers:   1,
		MaxAttempts:  3,
		TaskTimeout:  50 * time.Millisecond,
		TickInterval: 10 * time.Millisecond,
	})

	var mapCalls atomic.Int32
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		if mapCalls.Add(1) == 1 {
			// The pool's only worker stalls past its deadline.
			time.Sleep(400 * time.Millisecond)
		}
		return []mr.KeyValue{{Key: value, Value: "1"}}, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:       "lone-straggler",
		Map:        mapFn,
		Reduce:     wordcount.Reduce,
		Records:    records("lone"),
		NumMappers: 1,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	output, err := handle.Await(ctx)
	require.NoError(t, err)
	require.Equal(t, []mr.KeyValue{{Key: "lone", Value: "1"}}, output)
	require.Equal(t, int32(2), mapCalls.Load())
	require.Equal(t, engine.StatusCompleted, handle.Status())
}

func TestSubmit_ReduceStartsOnlyAfterAllMapsFinish(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 4})

	lines := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var mapped atomic.Int32
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		mapped.Add(1)
		return []mr.KeyValue{{Key: value, Value: "1"}}, nil
	}
	var minSeen atomic.Int32
	minSeen.Store(int32(len(lines)))
	reduceFn := func(key string, values []string) (mr.KeyValue, error) {
		if done := mapped.Load(); done < minSeen.Load() {
			minSeen.Store(done)
		}
		return mr.KeyValue{Key: key, Value: strconv.Itoa(len(values))}, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "barrier",
		Map:     mapFn,
		Reduce:  reduceFn,
		Records: records(lines...),
	})
	require.NoError(t, err)

	output, err := handle.Await(context.Background())
	require.NoError(t, err)
	require.Len(t, output, len(lines))
	require.Equal(t, int32(len(lines)), minSeen.Load())
}

func TestSubmit_DuplicateOutputKeyFailsJob(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		return []mr.KeyValue{{Key: value, Value: "1"}}, nil
	}
	// Emitting a constant key from every group produces the same key in
	// multiple reduce partitions.
	reduceFn := func(key string, values []string) (mr.KeyValue, error) {
		return mr.KeyValue{Key: "collision", Value: key}, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:        "duplicates",
		Map:         mapFn,
		Reduce:      reduceFn,
		Records:     records("a", "b", "c", "d", "e", "f", "g", "h"),
		NumReducers: 4,
	})
	require.NoError(t, err)

	_, err = handle.Await(context.Background())

	var userErr *mr.UserFunctionError
	require.ErrorAs(t, err, &userErr)
	require.Equal(t, "reduce", userErr.Phase)
}

func TestHandle_AbortCancelsJob(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	started := make(chan struct{}, 8)
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		started <- struct{}{}
		<-release
		return nil, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "aborted",
		Map:     mapFn,
		Reduce:  wordcount.Reduce,
		Records: records("a", "b"),
	})
	require.NoError(t, err)

	<-started
	handle.Abort()

	_, err = handle.Await(context.Background())

	var aborted *mr.JobAbortedError
	require.ErrorAs(t, err, &aborted)
	require.Equal(t, handle.JobID, aborted.JobID)
	require.Equal(t, engine.StatusAborted, handle.Status())
}

func TestHandle_StatusTransitions(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	release := make(chan struct{})
	started := make(chan struct{}, 8)
	job := wordcount.New(0)
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		started <- struct{}{}
		<-release
		return job.Map(key, value)
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "status",
		Map:     mapFn,
		Reduce:  job.Reduce,
		Records: records("one line"),
	})
	require.NoError(t, err)

	<-started
	require.Equal(t, engine.StatusRunning, handle.Status())

	close(release)
	_, err = handle.Await(context.Background())
	require.NoError(t, err)
	require.Equal(t, engine.StatusCompleted, handle.Status())
}

func TestHandle_AwaitHonorsContext(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 1})

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	mapFn := func(key, value string) ([]mr.KeyValue, error) {
		<-release
		return nil, nil
	}

	handle, err := e.Submit(context.Background(), engine.JobSpec{
		Name:    "stuck",
		Map:     mapFn,
		Reduce:  wordcount.Reduce,
		Records: records("a"),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = handle.Await(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunIterative_GradientDescentSingleRound(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	data := records("1,2", "2,3")
	output, err := e.RunIterative(context.Background(), regression.Rounds(data, regression.Params{}, 0.1, 1))
	require.NoError(t, err)

	params, err := regression.FromOutput(output)
	require.NoError(t, err)
	require.InDelta(t, 0.8, params.M, 1e-9)
	require.InDelta(t, 0.5, params.B, 1e-9)
}

func TestRunIterative_ConvergesTowardsFit(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	// y = x + 1 exactly, so loss decreases monotonically towards (1, 1).
	data := records("1,2", "2,3", "3,4", "4,5")
	output, err := e.RunIterative(context.Background(), regression.Rounds(data, regression.Params{}, 0.05, 200))
	require.NoError(t, err)

	params, err := regression.FromOutput(output)
	require.NoError(t, err)
	require.InDelta(t, 1.0, params.M, 0.15)
	require.InDelta(t, 1.0, params.B, 0.35)
}

func TestRunIterative_ConvergedStopsEarly(t *testing.T) {
	e := newTestEngine(engine.Config{NumWorkers: 2})

	var rounds atomic.Int32
	it := engine.IterativeSpec{
		MaxRounds: 10,
		Next: func(round int, carry []mr.KeyValue) (engine.JobSpec, error) {
			rounds.Add(1)
			job := wordcount.New(0)
			return engine.JobSpec{
				Name:    "round-" + strconv.Itoa(round),
				Map:     job.Map,
				Reduce:  job.Reduce,
				Records: records("same words every round"),
			}, nil
		},
		Converged: func(round int, output []mr.KeyValue) bool {
			return round == 2
		},
	}

	output, err := e.RunIterative(context.Background(), it)
	require.NoError(t, err)
	require.NotEmpty(t, output)
	require.Equal(t, int32(3), rounds.Load())
}

func TestRunIterative_Validation(t *testing.T) {
	e := newTestEngine(engine.Config{})

	var invalid *mr.InvalidInputError

	_, err := e.RunIterative(context.Background(), engine.IterativeSpec{MaxRounds: 0})
	require.ErrorAs(t, err, &invalid)

	_, err = e.RunIterative(context.Background(), engine.IterativeSpec{MaxRounds: 1})
	require.ErrorAs(t, err, &invalid)
}
