package stm

import "sync/atomic"

// Clock is the monotonic logical clock that stamps committed versions.
//
// Every successful read-write commit takes exactly one stamp from the
// clock, and every version it installs carries that stamp. Attempts record
// the clock value they started from (their read stamp); reading a cell whose
// stamp is newer than the read stamp forces a re-validation of the journal.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific stamp.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next stamp and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the current stamp without incrementing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}
