package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/jocic-m/mrengine/internal/engine/core"
	"github.com/jocic-m/mrengine/internal/engine/partition"
	"github.com/jocic-m/mrengine/internal/engine/shuffle"
	"github.com/jocic-m/mrengine/internal/engine/store"
	"github.com/jocic-m/mrengine/pkg/mr"
)

// Executor runs one assigned task attempt. The heartbeat callback must be
// invoked between logical steps so the scheduler can tell progress from a
// hung attempt; the context must be checked at the same points for
// cooperative cancellation.
type Executor interface {
	Execute(ctx context.Context, task core.Task, heartbeat func()) error
}

// JobExecutor runs the user map and reduce functions of a single job.
// Map output goes to the intermediate store, reduce output to the output
// store, both tagged with the attempt so an invalidated execution leaves no
// visible trace.
type JobExecutor struct {
	mapFn    mr.MapFunc
	reduceFn mr.ReduceFunc
	records  []mr.Record
	spans    []partition.Span
	inter    *store.Store
	output   *store.Store

	mu     sync.RWMutex
	groups [][]shuffle.Group
}

func NewJobExecutor(
	mapFn mr.MapFunc,
	reduceFn mr.ReduceFunc,
	records []mr.Record,
	spans []partition.Span,
	inter *store.Store,
	output *store.Store,
) *JobExecutor {
	return &JobExecutor{
		mapFn:    mapFn,
		reduceFn: reduceFn,
		records:  records,
		spans:    spans,
		inter:    inter,
		output:   output,
	}
}

// SetGroups installs the shuffled reduce input. The coordinator calls it
// after the map barrier, before any reduce task exists.
func (e *JobExecutor) SetGroups(groups [][]shuffle.Group) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.groups = groups
}

func (e *JobExecutor) Execute(ctx context.Context, task core.Task, heartbeat func()) error {
	switch task.Type {
	case core.TaskTypeMap:
		return e.runMap(ctx, task, heartbeat)
	case core.TaskTypeReduce:
		return e.runReduce(ctx, task, heartbeat)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (e *JobExecutor) runMap(ctx context.Context, task core.Task, heartbeat func()) error {
	span := e.spans[task.Partition]
	for i := span.Start; i < span.End; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		record := e.records[i]
		pairs, err := e.mapFn(record.Key, record.Value)
		if err != nil {
			return &mr.UserFunctionError{TaskID: task.ID, Phase: "map", Err: err}
		}
		e.inter.Append(task.Partition, task.Attempt, pairs...)
		heartbeat()
	}
	return nil
}

func (e *JobExecutor) runReduce(ctx context.Context, task core.Task, heartbeat func()) error {
	e.mu.RLock()
	groups := e.groups
	e.mu.RUnlock()

	for _, group := range groups[task.Partition] {
		if err := ctx.Err(); err != nil {
			return err
		}

		kv, err := e.reduceFn(group.Key, group.Values)
		if err != nil {
			return &mr.UserFunctionError{TaskID: task.ID, Phase: "reduce", Err: err}
		}
		e.output.Append(task.Partition, task.Attempt, kv)
		heartbeat()
	}
	return nil
}
