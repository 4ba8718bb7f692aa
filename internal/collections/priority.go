package collections

import (
	"slices"
	"sort"

	"github.com/roach88/stm/internal/stm"
)

// TPriorityQueue is a transactional priority queue. Take returns the
// element that orders first under less; equal elements come out in the
// order they were offered.
type TPriorityQueue[A any] struct {
	less  func(a, b A) bool
	items *stm.TRef[[]A] // sorted, immutable
}

// NewPriorityQueue creates an empty, already committed queue ordered by less.
func NewPriorityQueue[A any](less func(a, b A) bool) *TPriorityQueue[A] {
	return &TPriorityQueue[A]{less: less, items: stm.MakeCommitted[[]A](nil)}
}

// insert returns a copy of items with a placed after every element that
// does not order after it.
func (q *TPriorityQueue[A]) insert(items []A, a A) []A {
	i := sort.Search(len(items), func(i int) bool { return q.less(a, items[i]) })
	return slices.Insert(slices.Clone(items), i, a)
}

// Offer adds a.
func (q *TPriorityQueue[A]) Offer(a A) stm.STM[struct{}] {
	return q.items.Update(func(items []A) []A { return q.insert(items, a) })
}

// OfferAll adds every element of as.
func (q *TPriorityQueue[A]) OfferAll(as []A) stm.STM[struct{}] {
	return q.items.Update(func(items []A) []A {
		for _, a := range as {
			items = q.insert(items, a)
		}
		return items
	})
}

// Take removes and returns the first element, retrying while empty.
func (q *TPriorityQueue[A]) Take() stm.STM[A] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[A] {
		items := q.items.UnsafeGet(d)
		if len(items) == 0 {
			return stm.Retry[A]()
		}
		q.items.UnsafeSet(d, items[1:])
		return stm.Succeed(items[0])
	})
}

// Poll removes and returns the first element if there is one.
func (q *TPriorityQueue[A]) Poll() stm.STM[Maybe[A]] {
	return stm.Effect(func(d *stm.Driver) Maybe[A] {
		items := q.items.UnsafeGet(d)
		if len(items) == 0 {
			return None[A]()
		}
		q.items.UnsafeSet(d, items[1:])
		return Some(items[0])
	})
}

// Peek returns the first element without removing it, retrying while empty.
func (q *TPriorityQueue[A]) Peek() stm.STM[A] {
	nonEmpty := stm.RetryUntil(q.items.Get(), func(items []A) bool { return len(items) > 0 })
	return stm.Map(nonEmpty, func(items []A) A { return items[0] })
}

// TakeAll removes and returns every element in priority order.
func (q *TPriorityQueue[A]) TakeAll() stm.STM[[]A] {
	return q.items.GetAndSet(nil)
}

// TakeUpTo removes and returns at most n elements in priority order.
func (q *TPriorityQueue[A]) TakeUpTo(n int) stm.STM[[]A] {
	return stm.Modify(q.items, func(items []A) ([]A, []A) {
		n := min(max(n, 0), len(items))
		return items[:n:n], items[n:]
	})
}

// Size returns the number of elements.
func (q *TPriorityQueue[A]) Size() stm.STM[int] {
	return stm.Map(q.items.Get(), func(items []A) int { return len(items) })
}
