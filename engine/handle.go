package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/jocic-m/mrengine/internal/engine/scheduler"
	"github.com/jocic-m/mrengine/pkg/mr"
)

// Status is the externally visible job state.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusAborted   Status = "ABORTED"
)

// Handle tracks one submitted job. A job either completes fully or reports
// an error; partial results are never returned.
type Handle struct {
	JobID uuid.UUID

	sched  *scheduler.Scheduler
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	output []mr.KeyValue
	err    error
}

// Await blocks until the job finishes or ctx is cancelled, returning the
// final output or the job error.
func (h *Handle) Await(ctx context.Context) ([]mr.KeyValue, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.output, h.err
}

// Abort cancels the job: pending tasks fail immediately and running attempts
// are cancelled cooperatively.
func (h *Handle) Abort() {
	h.sched.Abort(&mr.JobAbortedError{JobID: h.JobID, Cause: errors.New("job cancelled")})
}

// Status reports the job's current state.
func (h *Handle) Status() Status {
	select {
	case <-h.done:
	default:
		return StatusRunning
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err == nil {
		return StatusCompleted
	}
	var aborted *mr.JobAbortedError
	if errors.As(h.err, &aborted) {
		return StatusAborted
	}
	return StatusFailed
}

func (h *Handle) finish(output []mr.KeyValue, err error) {
	h.mu.Lock()
	h.output = output
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
