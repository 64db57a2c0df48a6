package scheduler

import (
	"context"
	"time"

	"github.com/jocic-m/mrengine/internal/engine/core"
	"github.com/jocic-m/mrengine/pkg/mr"
)

// Start runs the deadline monitor until the context is cancelled. A running
// task past its heartbeat deadline is presumed lost: its worker is marked
// dead, the attempt's output is invalidated, and the task is requeued.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireStragglers()
		}
	}
}

func (s *Scheduler) expireStragglers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return
	}

	now := time.Now()
	for _, task := range s.tasks {
		if task.Status != core.TaskStatusRunning || now.Before(task.Deadline) {
			continue
		}

		workerID := *task.WorkerID
		if worker, exists := s.workers[workerID]; exists {
			worker.Status = core.WorkerStatusDead
			worker.CurrentTask = nil
			if s.hooks.OnWorkerDead != nil {
				s.hooks.OnWorkerDead(*worker)
			}
		}

		s.logger.Warn(
			"Task missed heartbeat deadline, presuming worker dead",
			"task_id", task.ID.String(),
			"type", string(task.Type),
			"attempt", task.Attempt,
			"worker_id", workerID.String(),
		)

		if s.hooks.OnInvalidated != nil {
			s.hooks.OnInvalidated(*task)
		}

		cause := &mr.WorkerFailureError{
			WorkerID: workerID,
			TaskID:   task.ID,
			Reason:   "heartbeat deadline exceeded",
		}
		s.requeueLocked(task, cause)
		if s.aborted {
			return
		}
	}
}
