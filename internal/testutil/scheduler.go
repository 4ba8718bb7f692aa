package testutil

import "sync"

// ManualScheduler queues scheduled tasks until the test runs them.
//
// It satisfies the engine's Scheduler interface, so wake-ups of suspended
// transactions only happen when the test calls RunPending. This makes
// "woken but not yet re-run" states observable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []func()
	ran   int
}

// NewManualScheduler creates an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// ScheduleTask queues task without running it.
func (s *ManualScheduler) ScheduleTask(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

// Pending returns the number of queued tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Ran returns the number of tasks run so far.
func (s *ManualScheduler) Ran() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// RunPending runs the tasks queued at the time of the call, in order, and
// returns how many ran. Tasks scheduled while they run stay queued.
func (s *ManualScheduler) RunPending() int {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	for _, task := range tasks {
		task()
	}

	s.mu.Lock()
	s.ran += len(tasks)
	s.mu.Unlock()
	return len(tasks)
}
