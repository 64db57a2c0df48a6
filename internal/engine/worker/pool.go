// Package worker runs task attempts pulled from the scheduler.
package worker

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jocic-m/mrengine/internal/engine/scheduler"
	"github.com/jocic-m/mrengine/internal/shared/logging"
)

// Pool is a set of worker goroutines. Each registers with the scheduler,
// then loops: pull an attempt, execute it, report the outcome. A worker
// exits when the scheduler has nothing left for it or the context is
// cancelled. Workers the deadline monitor declares dead are replaced via
// Spawn, so straggler expiries never starve requeued tasks of capacity.
type Pool struct {
	size   int
	sched  *scheduler.Scheduler
	exec   Executor
	logger logging.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(size int, sched *scheduler.Scheduler, exec Executor, logger logging.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		size:   size,
		sched:  sched,
		exec:   exec,
		logger: logger,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.Spawn(ctx)
	}
}

// Spawn adds one worker goroutine to the pool and reports whether it was
// started; a draining pool starts none. Registration happens inside the new
// goroutine, so Spawn is safe to call from scheduler hooks.
func (p *Pool) Spawn(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || ctx.Err() != nil {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx, p.sched.RegisterWorker())
	}()
	return true
}

// Wait blocks until every worker goroutine has exited. No workers can be
// spawned afterwards.
func (p *Pool) Wait() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, workerID uuid.UUID) {
	for {
		task, err := p.sched.Next(ctx, workerID)
		if err != nil {
			p.logger.Debug("Worker exiting", "worker_id", workerID.String(), "reason", err.Error())
			return
		}

		heartbeat := func() { p.sched.Heartbeat(workerID) }
		execErr := p.exec.Execute(ctx, *task, heartbeat)

		result := scheduler.Result{
			TaskID:   task.ID,
			WorkerID: workerID,
			Attempt:  task.Attempt,
			Err:      execErr,
		}

		if execErr != nil {
			p.logger.Error(
				"Task attempt failed",
				"task_id", task.ID.String(),
				"type", string(task.Type),
				"attempt", task.Attempt,
				"error", execErr,
			)
			p.sched.Fail(result)
			continue
		}

		if !p.sched.Complete(result) {
			p.logger.Warn(
				"Attempt completed after being superseded, output discarded",
				"task_id", task.ID.String(),
				"attempt", task.Attempt,
			)
		}
	}
}
