package core

import (
	"container/heap"
	"sync"
)

// TaskPriority orders pending tasks (lower value pops first).
type TaskPriority int

const (
	// PriorityRetry puts requeued attempts ahead of untouched tasks so a
	// straggler's replacement does not wait behind the whole backlog.
	PriorityRetry  TaskPriority = 0
	PriorityNormal TaskPriority = 1
)

// TaskQueue is a thread-safe min-heap of pending tasks. Tasks with the same
// priority pop in FIFO order.
type TaskQueue struct {
	mu       sync.Mutex
	pq       priorityQueue
	sequence uint64
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{pq: make(priorityQueue, 0)}
	heap.Init(&q.pq)
	return q
}

func (q *TaskQueue) Push(task *Task, priority TaskPriority) {
	if task == nil {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	heap.Push(&q.pq, &item{
		task:     task,
		priority: priority,
		sequence: q.sequence,
	})
	q.sequence++
}

func (q *TaskQueue) Pop() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil, false
	}
	it := heap.Pop(&q.pq).(*item)
	return it.task, true
}

func (q *TaskQueue) Peek() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pq.Len() == 0 {
		return nil, false
	}
	return q.pq[0].task, true
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pq.Len()
}

// item wraps a Task with its priority, sequence number, and heap index.
type item struct {
	task     *Task
	priority TaskPriority
	sequence uint64 // Insertion order for FIFO within same priority
	index    int    // Required by heap.Interface
}

// priorityQueue satisfies heap.Interface.
type priorityQueue []*item

func (pq priorityQueue) Len() int {
	return len(pq)
}

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].sequence < pq[j].sequence
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	it := x.(*item)
	it.index = n
	*pq = append(*pq, it)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*pq = old[0 : n-1]
	return it
}
