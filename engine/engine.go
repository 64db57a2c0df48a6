// Package engine runs MapReduce jobs on a pool of in-process workers:
// partitioned map tasks, a map-to-reduce barrier, a hash shuffle, reduce
// tasks, and retry of attempts lost to worker failure.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jocic-m/mrengine/internal/engine/core"
	"github.com/jocic-m/mrengine/internal/engine/partition"
	"github.com/jocic-m/mrengine/internal/engine/scheduler"
	"github.com/jocic-m/mrengine/internal/engine/shuffle"
	"github.com/jocic-m/mrengine/internal/engine/store"
	"github.com/jocic-m/mrengine/internal/engine/worker"
	"github.com/jocic-m/mrengine/internal/shared/logging"
	"github.com/jocic-m/mrengine/pkg/mr"
)

// Config carries engine-wide settings and per-job defaults.
type Config struct {
	NumWorkers   int
	NumReducers  int
	MaxAttempts  int
	TaskTimeout  time.Duration
	TickInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		NumWorkers:   4,
		NumReducers:  4,
		MaxAttempts:  3,
		TaskTimeout:  30 * time.Second,
		TickInterval: time.Second,
	}
}

type Engine struct {
	cfg    Config
	logger logging.Logger
}

// New builds an engine. Zero-valued config fields fall back to defaults;
// a nil logger gets a JSON slog logger at info level.
func New(cfg Config, logger logging.Logger) *Engine {
	defaults := DefaultConfig()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = defaults.NumWorkers
	}
	if cfg.NumReducers <= 0 {
		cfg.NumReducers = defaults.NumReducers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaults.TaskTimeout
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaults.TickInterval
	}
	if logger == nil {
		logger = logging.NewSlogLogger(slog.LevelInfo)
	}
	return &Engine{cfg: cfg, logger: logger}
}

// JobSpec describes one job round. Zero-valued limits inherit the engine
// defaults.
type JobSpec struct {
	Name    string
	Map     mr.MapFunc
	Reduce  mr.ReduceFunc
	Records []mr.Record

	NumMappers  int
	NumReducers int
	MaxAttempts int
	TaskTimeout time.Duration
}

// Submit validates the spec and starts the job. The returned handle reports
// the final output, or the job error, via Await.
func (e *Engine) Submit(ctx context.Context, spec JobSpec) (*Handle, error) {
	if spec.Map == nil || spec.Reduce == nil {
		return nil, &mr.InvalidInputError{Reason: "job requires both a map and a reduce function"}
	}
	if spec.NumMappers <= 0 {
		spec.NumMappers = e.cfg.NumWorkers
	}
	if spec.NumReducers <= 0 {
		spec.NumReducers = e.cfg.NumReducers
	}
	if spec.MaxAttempts <= 0 {
		spec.MaxAttempts = e.cfg.MaxAttempts
	}
	if spec.TaskTimeout <= 0 {
		spec.TaskTimeout = e.cfg.TaskTimeout
	}

	spans, err := partition.Split(spec.Records, spec.NumMappers)
	if err != nil {
		return nil, err
	}

	jobID := uuid.New()
	logger := e.logger.With("job_id", jobID.String(), "job", spec.Name)

	inter := store.New()
	output := store.New()
	exec := worker.NewJobExecutor(spec.Map, spec.Reduce, spec.Records, spans, inter, output)

	storeFor := func(task core.Task) *store.Store {
		if task.Type == core.TaskTypeReduce {
			return output
		}
		return inter
	}

	jobCtx, cancel := context.WithCancel(ctx)
	var pool *worker.Pool

	hooks := scheduler.Hooks{
		OnCompleted: func(task core.Task) {
			if err := storeFor(task).Promote(task.Partition, task.Attempt); err != nil {
				logger.Error("Failed to promote attempt output", "task_id", task.ID.String(), "error", err)
			}
		},
		OnInvalidated: func(task core.Task) {
			storeFor(task).Discard(task.Partition, task.Attempt)
		},
		OnWorkerDead: func(w core.Worker) {
			logger.Warn("Replacing dead worker", "worker_id", w.ID.String())
			pool.Spawn(jobCtx)
		},
	}

	sched := scheduler.New(scheduler.Config{
		MaxAttempts:  spec.MaxAttempts,
		TaskTimeout:  spec.TaskTimeout,
		TickInterval: e.cfg.TickInterval,
	}, hooks, logger)

	handle := &Handle{
		JobID:  jobID,
		sched:  sched,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	pool = worker.NewPool(e.cfg.NumWorkers, sched, exec, logger)

	go e.runJob(jobCtx, cancel, logger, handle, spec, jobID, spans, sched, pool, exec, inter, output)

	return handle, nil
}

func (e *Engine) runJob(
	ctx context.Context,
	cancel context.CancelFunc,
	logger logging.Logger,
	handle *Handle,
	spec JobSpec,
	jobID uuid.UUID,
	spans []partition.Span,
	sched *scheduler.Scheduler,
	pool *worker.Pool,
	exec *worker.JobExecutor,
	inter *store.Store,
	output *store.Store,
) {
	defer func() {
		cancel()
		pool.Wait()
	}()

	logger.Info(
		"Job submitted",
		"num_map_tasks", len(spans),
		"num_reduce_tasks", spec.NumReducers,
		"num_records", len(spec.Records),
	)

	go sched.Start(ctx)
	pool.Start(ctx)

	if err := sched.AddTasks(newTasks(jobID, core.TaskTypeMap, len(spans))); err != nil {
		handle.finish(nil, err)
		return
	}
	if err := sched.Wait(ctx); err != nil {
		handle.finish(nil, err)
		return
	}

	groups, err := shuffle.Shuffle(inter.Runs(len(spans)), spec.NumReducers)
	if err != nil {
		sched.Abort(err)
		handle.finish(nil, err)
		return
	}
	exec.SetGroups(groups)

	if err := sched.AddTasks(newTasks(jobID, core.TaskTypeReduce, spec.NumReducers)); err != nil {
		handle.finish(nil, err)
		return
	}
	if err := sched.Wait(ctx); err != nil {
		handle.finish(nil, err)
		return
	}

	results, err := assemble(output.Runs(spec.NumReducers))
	if err != nil {
		handle.finish(nil, err)
		return
	}

	logger.Info("Job completed", "num_output_keys", len(results))
	handle.finish(results, nil)
}

func newTasks(jobID uuid.UUID, kind core.TaskType, count int) []*core.Task {
	tasks := make([]*core.Task, 0, count)
	for i := 0; i < count; i++ {
		tasks = append(tasks, &core.Task{
			ID:        uuid.New(),
			JobID:     jobID,
			Type:      kind,
			Partition: i,
		})
	}
	return tasks
}

// assemble concatenates reduce partitions in partition order. Each key must
// appear at most once in the final output; a duplicate means a reduce
// function emitted a key outside its own group.
func assemble(runs [][]mr.KeyValue) ([]mr.KeyValue, error) {
	seen := make(map[string]struct{})
	var results []mr.KeyValue
	for _, run := range runs {
		for _, kv := range run {
			if _, dup := seen[kv.Key]; dup {
				return nil, &mr.UserFunctionError{
					Phase: "reduce",
					Err:   fmt.Errorf("duplicate output key %q", kv.Key),
				}
			}
			seen[kv.Key] = struct{}{}
			results = append(results, kv)
		}
	}
	return results, nil
}
