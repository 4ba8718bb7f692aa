package stm

import "sync/atomic"

var cellIDs atomic.Uint64

// version is an immutable committed value. A cell's version pointer only
// changes at commit, so pointer identity doubles as the cell's version.
type version struct {
	value any
	stamp uint64
}

// cell is the untyped core of a TRef.
type cell struct {
	id      uint64
	current atomic.Pointer[version]

	// todos holds wake-up callbacks of transactions parked on this cell.
	// Guarded by the write side of commitLock.
	todos map[TxnID]func()
}

func newCell(v any) *cell {
	c := &cell{id: cellIDs.Add(1)}
	c.current.Store(&version{value: v})
	return c
}

// TRef is a transactional cell holding a value of type A.
//
// The committed value changes only when a transaction that wrote the cell
// commits. Inside a transaction every access goes through the attempt's
// Journal: the first access snapshots the committed value, later accesses
// see the attempt-local value.
//
// Values stored in a TRef must be treated as immutable. Updating a slice or
// map held by a TRef means storing a modified copy.
type TRef[A any] struct {
	c *cell
}

// Make allocates a new TRef inside a transaction. The allocation is
// journaled, so the cell only becomes reachable through the transaction's
// result once it commits.
func Make[A any](initial A) STM[*TRef[A]] {
	return Effect(func(d *Driver) *TRef[A] {
		return UnsafeMake(d, initial)
	})
}

// UnsafeMake allocates a journaled TRef from inside a WithRuntime or Effect
// callback.
func UnsafeMake[A any](d *Driver, initial A) *TRef[A] {
	ref := &TRef[A]{c: newCell(initial)}
	d.journal.track(ref.c)
	return ref
}

// MakeCommitted allocates a TRef outside any transaction, already holding
// initial as its committed value. Intended for setup code and tests.
func MakeCommitted[A any](initial A) *TRef[A] {
	return &TRef[A]{c: newCell(initial)}
}

// ID returns the process-unique id of the cell.
func (r *TRef[A]) ID() uint64 {
	return r.c.id
}

// Get reads the cell.
func (r *TRef[A]) Get() STM[A] {
	return Effect(func(d *Driver) A {
		return r.UnsafeGet(d)
	})
}

// Set writes the cell.
func (r *TRef[A]) Set(a A) STM[struct{}] {
	return Effect(func(d *Driver) struct{} {
		r.UnsafeSet(d, a)
		return struct{}{}
	})
}

// Update replaces the value with f applied to it.
func (r *TRef[A]) Update(f func(A) A) STM[struct{}] {
	return Effect(func(d *Driver) struct{} {
		r.UnsafeSet(d, f(r.UnsafeGet(d)))
		return struct{}{}
	})
}

// UpdateAndGet updates the value and returns the new one.
func (r *TRef[A]) UpdateAndGet(f func(A) A) STM[A] {
	return Effect(func(d *Driver) A {
		next := f(r.UnsafeGet(d))
		r.UnsafeSet(d, next)
		return next
	})
}

// GetAndUpdate updates the value and returns the previous one.
func (r *TRef[A]) GetAndUpdate(f func(A) A) STM[A] {
	return Effect(func(d *Driver) A {
		prev := r.UnsafeGet(d)
		r.UnsafeSet(d, f(prev))
		return prev
	})
}

// GetAndSet writes a and returns the previous value.
func (r *TRef[A]) GetAndSet(a A) STM[A] {
	return Effect(func(d *Driver) A {
		prev := r.UnsafeGet(d)
		r.UnsafeSet(d, a)
		return prev
	})
}

// Modify computes a result and a replacement value in one step.
func Modify[A, B any](r *TRef[A], f func(A) (B, A)) STM[B] {
	return Effect(func(d *Driver) B {
		b, next := f(r.UnsafeGet(d))
		r.UnsafeSet(d, next)
		return b
	})
}

// UnsafeGet reads the cell through the driver's journal. It must only be
// called from inside a WithRuntime or Effect callback.
func (r *TRef[A]) UnsafeGet(d *Driver) A {
	return cast[A](d.journal.read(r.c))
}

// UnsafeSet writes the cell through the driver's journal. It must only be
// called from inside a WithRuntime or Effect callback.
func (r *TRef[A]) UnsafeSet(d *Driver, a A) {
	d.journal.write(r.c, a)
}

// Committed returns the last committed value without a transaction.
// For diagnostics and tests; it gives no consistency across cells.
func (r *TRef[A]) Committed() A {
	return cast[A](r.c.current.Load().value)
}

// cast converts an erased value back to A, mapping nil to A's zero value.
func cast[A any](v any) A {
	if v == nil {
		var zero A
		return zero
	}
	return v.(A)
}
