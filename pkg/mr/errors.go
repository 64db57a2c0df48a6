package mr

import (
	"fmt"

	"github.com/google/uuid"
)

// InvalidInputError reports a malformed partition or job request.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Reason
}

// UserFunctionError wraps a failure raised by user map or reduce logic.
// The engine never retries it: the same input would fail the same way.
type UserFunctionError struct {
	TaskID uuid.UUID
	Phase  string
	Err    error
}

func (e *UserFunctionError) Error() string {
	return fmt.Sprintf("%s function failed (task %s): %v", e.Phase, e.TaskID, e.Err)
}

func (e *UserFunctionError) Unwrap() error {
	return e.Err
}

// WorkerFailureError reports an infrastructure fault: a worker missed its
// heartbeat deadline while holding a task. The scheduler retries these up to
// the configured attempt limit.
type WorkerFailureError struct {
	WorkerID uuid.UUID
	TaskID   uuid.UUID
	Reason   string
}

func (e *WorkerFailureError) Error() string {
	return fmt.Sprintf("worker %s failed on task %s: %s", e.WorkerID, e.TaskID, e.Reason)
}

// JobAbortedError reports a job that exceeded its attempt budget or was
// cancelled explicitly.
type JobAbortedError struct {
	JobID uuid.UUID
	Cause error
}

func (e *JobAbortedError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("job %s aborted", e.JobID)
	}
	return fmt.Sprintf("job %s aborted: %v", e.JobID, e.Cause)
}

func (e *JobAbortedError) Unwrap() error {
	return e.Cause
}
