package stm

import (
	"context"
	"sync"
)

// Scheduler runs deferred tasks. Woken transactions are handed to it
// instead of being re-run on the committing goroutine's stack.
type Scheduler interface {
	ScheduleTask(task func())
}

// SchedulerFunc adapts a function to Scheduler.
type SchedulerFunc func(task func())

// ScheduleTask calls f(task).
func (f SchedulerFunc) ScheduleTask(task func()) {
	f(task)
}

// GoScheduler runs every task on a new goroutine.
var GoScheduler = SchedulerFunc(func(task func()) { go task() })

// TaskQueue is a thread-safe FIFO scheduler drained by a single Run loop.
//
// The queue is unbounded so that a commit waking many transactions never
// blocks. Tasks run in the order they were scheduled.
type TaskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1; closed by Close
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make([]func(), 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// ScheduleTask appends task. Tasks scheduled after Close are dropped.
func (q *TaskQueue) ScheduleTask(task func()) {
	q.Enqueue(task)
}

// Enqueue adds task to the back of the queue.
// Returns false if the queue is closed.
func (q *TaskQueue) Enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, task)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front task without blocking.
func (q *TaskQueue) TryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks[0] = nil // release the closure
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return task, true
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs pending tasks on the calling goroutine until the queue is
// empty, including tasks scheduled by the tasks it runs. Returns the number
// of tasks run.
func (q *TaskQueue) Drain() int {
	n := 0
	for {
		task, ok := q.TryDequeue()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Run executes tasks until ctx is cancelled or the queue is closed and
// drained. Must be called from exactly one goroutine.
func (q *TaskQueue) Run(ctx context.Context) error {
	for {
		if task, ok := q.TryDequeue(); ok {
			task()
			continue
		}

		select {
		case <-ctx.Done():
			q.Close()
			return ctx.Err()
		case <-q.signal:
			if q.isDone() {
				return nil
			}
		}
	}
}

func (q *TaskQueue) isDone() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Close stops accepting tasks and wakes Run.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
