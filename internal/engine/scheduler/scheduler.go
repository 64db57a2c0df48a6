// Package scheduler assigns task attempts to workers, tracks their state,
// and requeues attempts lost to worker failure.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jocic-m/mrengine/internal/engine/core"
	"github.com/jocic-m/mrengine/internal/shared/logging"
	"github.com/jocic-m/mrengine/pkg/mr"
)

// ErrNoMoreTasks tells a worker loop to exit: the scheduler has aborted or
// the worker has been declared dead.
var ErrNoMoreTasks = errors.New("scheduler: no more tasks")

type Config struct {
	// MaxAttempts bounds executions per task; exceeding it aborts the job.
	MaxAttempts int
	// TaskTimeout is the heartbeat deadline for a running attempt.
	TaskTimeout time.Duration
	// TickInterval is how often the deadline monitor scans running tasks.
	TickInterval time.Duration
}

// Hooks run synchronously under the scheduler lock, so attempt promotion and
// invalidation stay atomic with the scheduling decision that caused them.
type Hooks struct {
	// OnCompleted fires when a task attempt's result is accepted.
	OnCompleted func(task core.Task)
	// OnInvalidated fires when an attempt's output must be discarded:
	// the attempt failed or its worker is presumed dead.
	OnInvalidated func(task core.Task)
	// OnWorkerDead fires when the deadline monitor declares a worker dead,
	// so the pool can start a replacement. Without one, repeated straggler
	// expiries would drain the pool while requeued tasks still wait.
	OnWorkerDead func(worker core.Worker)
}

// Result is one attempt's outcome as reported by a worker.
type Result struct {
	TaskID   uuid.UUID
	WorkerID uuid.UUID
	Attempt  int
	Err      error
}

type Scheduler struct {
	cfg    Config
	hooks  Hooks
	logger logging.Logger

	mu        sync.Mutex
	queue     *core.TaskQueue
	tasks     map[uuid.UUID]*core.Task
	workers   map[uuid.UUID]*core.Worker
	remaining int
	phaseDone chan struct{}
	wake      chan struct{}
	aborted   bool
	cause     error
}

func New(cfg Config, hooks Hooks, logger logging.Logger) *Scheduler {
	phaseDone := make(chan struct{})
	close(phaseDone) // no tasks outstanding yet

	return &Scheduler{
		cfg:       cfg,
		hooks:     hooks,
		logger:    logger,
		queue:     core.NewTaskQueue(),
		tasks:     make(map[uuid.UUID]*core.Task),
		workers:   make(map[uuid.UUID]*core.Worker),
		phaseDone: phaseDone,
		wake:      make(chan struct{}),
	}
}

// RegisterWorker adds an idle worker and returns its handle ID.
func (s *Scheduler) RegisterWorker() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker := &core.Worker{
		ID:              uuid.New(),
		Status:          core.WorkerStatusIdle,
		LastHeartbeatAt: time.Now(),
	}
	s.workers[worker.ID] = worker
	s.logger.Debug("Registered worker", "worker_id", worker.ID.String())
	return worker.ID
}

// AddTasks enqueues one phase's tasks. Wait blocks until all tasks added so
// far reach a terminal state, which is how the coordinator realizes the
// map-to-reduce barrier: reduce tasks are added only after Wait returns for
// the map phase and the shuffle has run.
func (s *Scheduler) AddTasks(tasks []*core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return s.cause
	}

	if s.remaining == 0 && len(tasks) > 0 {
		s.phaseDone = make(chan struct{})
	}
	for _, task := range tasks {
		task.Status = core.TaskStatusPending
		s.tasks[task.ID] = task
		s.queue.Push(task, core.PriorityNormal)
	}
	s.remaining += len(tasks)
	s.broadcastLocked()
	return nil
}

// Wait blocks until every added task is terminal, returning the abort cause
// if the job aborted.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.aborted {
		cause := s.cause
		s.mu.Unlock()
		return cause
	}
	done := s.phaseDone
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return s.cause
	}
	return nil
}

// Next blocks until a task attempt can be assigned to the worker. It returns
// ErrNoMoreTasks when the worker should exit.
func (s *Scheduler) Next(ctx context.Context, workerID uuid.UUID) (*core.Task, error) {
	for {
		s.mu.Lock()
		if s.aborted {
			s.mu.Unlock()
			return nil, ErrNoMoreTasks
		}
		worker, exists := s.workers[workerID]
		if !exists || worker.Status == core.WorkerStatusDead {
			s.mu.Unlock()
			return nil, ErrNoMoreTasks
		}
		if task, ok := s.queue.Pop(); ok {
			s.assignLocked(task, worker)
			assigned := *task
			s.mu.Unlock()
			return &assigned, nil
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

func (s *Scheduler) assignLocked(task *core.Task, worker *core.Worker) {
	now := time.Now()
	workerID := worker.ID
	taskID := task.ID

	task.Status = core.TaskStatusRunning
	task.Attempt++
	task.WorkerID = &workerID
	task.Deadline = now.Add(s.cfg.TaskTimeout)
	task.StartedAt = &now

	worker.Status = core.WorkerStatusBusy
	worker.CurrentTask = &taskID
	worker.LastHeartbeatAt = now

	s.logger.Debug(
		"Assigned task",
		"task_id", task.ID.String(),
		"type", string(task.Type),
		"partition", task.Partition,
		"attempt", task.Attempt,
		"worker_id", workerID.String(),
	)
}

// Heartbeat records worker liveness and extends its running task's deadline.
func (s *Scheduler) Heartbeat(workerID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	worker, exists := s.workers[workerID]
	if !exists || worker.Status == core.WorkerStatusDead {
		return
	}
	now := time.Now()
	worker.LastHeartbeatAt = now

	if worker.CurrentTask == nil {
		return
	}
	if task, ok := s.tasks[*worker.CurrentTask]; ok && task.Status == core.TaskStatusRunning {
		task.Deadline = now.Add(s.cfg.TaskTimeout)
	}
}

// Complete records a successful attempt. It reports whether the result was
// accepted; a result from a superseded attempt or a dead worker is ignored
// so its output is never promoted.
func (s *Scheduler) Complete(res Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return false
	}
	task := s.tasks[res.TaskID]
	if !s.acceptsLocked(task, res) {
		s.logger.Warn(
			"Ignoring stale completion",
			"task_id", res.TaskID.String(),
			"attempt", res.Attempt,
			"worker_id", res.WorkerID.String(),
		)
		return false
	}

	now := time.Now()
	task.Status = core.TaskStatusCompleted
	task.EndedAt = &now
	s.idleWorkerLocked(res.WorkerID)

	if s.hooks.OnCompleted != nil {
		s.hooks.OnCompleted(*task)
	}

	s.remaining--
	if s.remaining == 0 {
		s.closePhaseLocked()
	}

	s.logger.Debug(
		"Task completed",
		"task_id", task.ID.String(),
		"type", string(task.Type),
		"attempt", task.Attempt,
	)
	return true
}

// Fail records a failed attempt. User-logic faults abort the job without
// retry; anything else requeues the task up to the attempt limit.
func (s *Scheduler) Fail(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return
	}
	task := s.tasks[res.TaskID]
	if !s.acceptsLocked(task, res) {
		s.logger.Debug("Ignoring stale failure", "task_id", res.TaskID.String(), "attempt", res.Attempt)
		return
	}

	s.idleWorkerLocked(res.WorkerID)

	var userErr *mr.UserFunctionError
	if errors.As(res.Err, &userErr) {
		s.failTaskLocked(task, res.Err)
		s.abortLocked(res.Err)
		return
	}

	if s.hooks.OnInvalidated != nil {
		s.hooks.OnInvalidated(*task)
	}
	s.requeueLocked(task, res.Err)
}

// Abort cancels the job: pending tasks are failed and workers are released.
func (s *Scheduler) Abort(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(cause)
}

// Aborted returns the abort cause, or nil if the scheduler is healthy.
func (s *Scheduler) Aborted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return s.cause
	}
	return nil
}

// TasksSnapshot returns copies of every known task.
func (s *Scheduler) TasksSnapshot() []core.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]core.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}
	return tasks
}

// WorkersSnapshot returns copies of every registered worker.
func (s *Scheduler) WorkersSnapshot() []core.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()

	workers := make([]core.Worker, 0, len(s.workers))
	for _, worker := range s.workers {
		workers = append(workers, *worker)
	}
	return workers
}

// acceptsLocked checks that a result refers to the task's current attempt on
// its assigned worker. Anything else is a leftover from an invalidated
// attempt and must not influence state.
func (s *Scheduler) acceptsLocked(task *core.Task, res Result) bool {
	return task != nil &&
		task.Status == core.TaskStatusRunning &&
		task.Attempt == res.Attempt &&
		task.WorkerID != nil &&
		*task.WorkerID == res.WorkerID
}

func (s *Scheduler) idleWorkerLocked(workerID uuid.UUID) {
	worker, exists := s.workers[workerID]
	if !exists {
		return
	}
	worker.CurrentTask = nil
	if worker.Status != core.WorkerStatusDead {
		worker.Status = core.WorkerStatusIdle
	}
}

func (s *Scheduler) requeueLocked(task *core.Task, cause error) {
	msg := cause.Error()
	task.Error = &msg

	if task.Attempt >= s.cfg.MaxAttempts {
		s.failTaskLocked(task, cause)
		s.abortLocked(&mr.JobAbortedError{JobID: task.JobID, Cause: cause})
		return
	}

	s.logger.Warn(
		"Requeueing task",
		"task_id", task.ID.String(),
		"type", string(task.Type),
		"attempt", task.Attempt,
		"max_attempts", s.cfg.MaxAttempts,
		"error", msg,
	)

	task.Status = core.TaskStatusPending
	task.WorkerID = nil
	task.Deadline = time.Time{}
	s.queue.Push(task, core.PriorityRetry)
	s.broadcastLocked()
}

func (s *Scheduler) failTaskLocked(task *core.Task, cause error) {
	now := time.Now()
	msg := cause.Error()
	task.Status = core.TaskStatusFailed
	task.EndedAt = &now
	task.Error = &msg
}

func (s *Scheduler) abortLocked(cause error) {
	if s.aborted {
		return
	}
	s.aborted = true
	s.cause = cause

	for {
		task, ok := s.queue.Pop()
		if !ok {
			break
		}
		s.failTaskLocked(task, cause)
	}

	// In-flight attempts are cancelled cooperatively; their tasks still
	// reach a terminal state now so snapshots never report a running task
	// on an aborted job.
	for _, task := range s.tasks {
		if task.Status != core.TaskStatusRunning {
			continue
		}
		if s.hooks.OnInvalidated != nil {
			s.hooks.OnInvalidated(*task)
		}
		if task.WorkerID != nil {
			s.idleWorkerLocked(*task.WorkerID)
		}
		s.failTaskLocked(task, cause)
	}

	s.logger.Error("Job aborted", "error", cause)
	s.closePhaseLocked()
	s.broadcastLocked()
}

func (s *Scheduler) closePhaseLocked() {
	select {
	case <-s.phaseDone:
	default:
		close(s.phaseDone)
	}
}

// broadcastLocked wakes every worker blocked in Next.
func (s *Scheduler) broadcastLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}
