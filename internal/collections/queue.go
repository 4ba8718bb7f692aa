package collections

import (
	"math"
	"slices"

	"github.com/roach88/stm/internal/stm"
)

// TQueue is a transactional FIFO queue.
//
// The elements are held as one immutable slice in a single cell. Take
// retries while the queue is empty; what Offer does on a full bounded queue
// depends on the queue's Strategy.
type TQueue[A any] struct {
	capacity int
	strategy Strategy
	items    *stm.TRef[[]A]
}

// NewBoundedQueue creates a queue whose producers retry while it is full.
func NewBoundedQueue[A any](capacity int) *TQueue[A] {
	return newQueue[A](capacity, BackPressure)
}

// NewDroppingQueue creates a queue that rejects offers while it is full.
func NewDroppingQueue[A any](capacity int) *TQueue[A] {
	return newQueue[A](capacity, Dropping)
}

// NewSlidingQueue creates a queue that evicts its oldest elements to make
// room for new ones.
func NewSlidingQueue[A any](capacity int) *TQueue[A] {
	return newQueue[A](capacity, Sliding)
}

// NewUnboundedQueue creates a queue without a capacity limit.
func NewUnboundedQueue[A any]() *TQueue[A] {
	return newQueue[A](math.MaxInt, BackPressure)
}

func newQueue[A any](capacity int, strategy Strategy) *TQueue[A] {
	if capacity < 1 {
		capacity = 1
	}
	return &TQueue[A]{
		capacity: capacity,
		strategy: strategy,
		items:    stm.MakeCommitted[[]A](nil),
	}
}

// Capacity returns the maximum number of elements.
func (q *TQueue[A]) Capacity() int {
	return q.capacity
}

// Offer appends a. It reports false only when a dropping queue is full.
func (q *TQueue[A]) Offer(a A) stm.STM[bool] {
	return q.OfferAll([]A{a})
}

// OfferAll appends every element of as in order.
//
// A back-pressure queue retries until all of them fit at once. A dropping
// queue keeps the ones that fit and reports whether none were dropped. A
// sliding queue keeps the newest elements.
func (q *TQueue[A]) OfferAll(as []A) stm.STM[bool] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[bool] {
		items := q.items.UnsafeGet(d)
		free := q.capacity - len(items)

		switch {
		case len(as) <= free:
			q.items.UnsafeSet(d, append(slices.Clip(items), as...))
			return stm.Succeed(true)

		case q.strategy == Dropping:
			q.items.UnsafeSet(d, append(slices.Clip(items), as[:free]...))
			return stm.Succeed(false)

		case q.strategy == Sliding:
			all := append(slices.Clip(items), as...)
			q.items.UnsafeSet(d, all[len(all)-q.capacity:])
			return stm.Succeed(true)

		default:
			return stm.Retry[bool]()
		}
	})
}

// Take removes and returns the oldest element, retrying while empty.
func (q *TQueue[A]) Take() stm.STM[A] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[A] {
		items := q.items.UnsafeGet(d)
		if len(items) == 0 {
			return stm.Retry[A]()
		}
		q.items.UnsafeSet(d, items[1:])
		return stm.Succeed(items[0])
	})
}

// Poll removes and returns the oldest element if there is one.
func (q *TQueue[A]) Poll() stm.STM[Maybe[A]] {
	return stm.Effect(func(d *stm.Driver) Maybe[A] {
		items := q.items.UnsafeGet(d)
		if len(items) == 0 {
			return None[A]()
		}
		q.items.UnsafeSet(d, items[1:])
		return Some(items[0])
	})
}

// Peek returns the oldest element without removing it, retrying while
// empty.
func (q *TQueue[A]) Peek() stm.STM[A] {
	nonEmpty := stm.RetryUntil(q.items.Get(), func(items []A) bool { return len(items) > 0 })
	return stm.Map(nonEmpty, func(items []A) A { return items[0] })
}

// TakeAll removes and returns every element.
func (q *TQueue[A]) TakeAll() stm.STM[[]A] {
	return q.items.GetAndSet(nil)
}

// TakeUpTo removes and returns at most n elements.
func (q *TQueue[A]) TakeUpTo(n int) stm.STM[[]A] {
	return stm.Modify(q.items, func(items []A) ([]A, []A) {
		n := min(max(n, 0), len(items))
		return items[:n:n], items[n:]
	})
}

// Size returns the number of elements.
func (q *TQueue[A]) Size() stm.STM[int] {
	return stm.Map(q.items.Get(), func(items []A) int { return len(items) })
}

// IsEmpty reports whether the queue has no elements.
func (q *TQueue[A]) IsEmpty() stm.STM[bool] {
	return stm.Map(q.Size(), func(n int) bool { return n == 0 })
}

// IsFull reports whether the queue is at capacity.
func (q *TQueue[A]) IsFull() stm.STM[bool] {
	return stm.Map(q.Size(), func(n int) bool { return n >= q.capacity })
}
