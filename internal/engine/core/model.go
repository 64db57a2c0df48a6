package core

import (
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeMap    TaskType = "MAP"
	TaskTypeReduce TaskType = "REDUCE"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusCompleted TaskStatus = "COMPLETED"
	TaskStatusFailed    TaskStatus = "FAILED"
)

// Task is one schedulable unit of a job. Partition indexes the input span
// for map tasks and the reduce partition for reduce tasks. The scheduler is
// the only mutator; everyone else sees copies.
type Task struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Type      TaskType
	Status    TaskStatus
	Partition int

	Attempt  int
	WorkerID *uuid.UUID
	Deadline time.Time

	StartedAt *time.Time
	EndedAt   *time.Time
	Error     *string
}

type WorkerStatus string

const (
	WorkerStatusIdle WorkerStatus = "IDLE"
	WorkerStatusBusy WorkerStatus = "BUSY"
	WorkerStatusDead WorkerStatus = "DEAD"
)

// Worker tracks one pool member's liveness. A worker whose task misses its
// heartbeat deadline transitions to Dead and never rejoins.
type Worker struct {
	ID              uuid.UUID
	Status          WorkerStatus
	CurrentTask     *uuid.UUID
	LastHeartbeatAt time.Time
}
