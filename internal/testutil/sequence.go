package testutil

import "sync"

// Sequence hands out a thread-safe monotonic sequence of numbers.
//
// The harness uses it to stamp runs and outcomes in completion order.
// Unlike the engine's commit clock, a Sequence can be reset for test reuse,
// so the same scenario run twice produces identical seq values.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Sequence struct {
	mu  sync.Mutex
	seq int64
}

// NewSequence creates a new sequence starting at 0.
//
// The first call to Next() returns 1.
func NewSequence() *Sequence {
	return &Sequence{seq: 0}
}

// Next increments and returns the next sequence number.
func (s *Sequence) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// Current returns the current sequence number without incrementing.
func (s *Sequence) Current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Reset resets the sequence to 0.
//
// After Reset(), the next call to Next() returns 1.
func (s *Sequence) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = 0
}
