package collections

import (
	"math"

	"github.com/roach88/stm/internal/stm"
)

// hubNode is one published value. Each node lives in the cell its
// predecessor points to, and is replaced (never mutated) when a subscriber
// consumes it.
type hubNode[A any] struct {
	value A

	// remaining counts subscribers that have not consumed the node yet.
	remaining int

	// next is the cell the following publish fills.
	next *stm.TRef[*hubNode[A]]
}

// THub is a transactional broadcast hub. Every subscriber observes every
// value published after it subscribed, exactly once and in order.
//
// Published values form a forward-linked chain of cells. A subscriber owns
// a cursor cell pointing at the next cell it will read. Nodes hold no
// pointer back to the hub or to earlier nodes, so a node becomes garbage
// once every cursor has moved past it.
type THub[A any] struct {
	capacity int
	strategy Strategy

	// tail is the empty cell the next publish fills.
	tail *stm.TRef[*stm.TRef[*hubNode[A]]]

	// size counts published values not yet consumed by every subscriber.
	size *stm.TRef[int]

	subscribers *stm.TRef[int]
}

// NewBoundedHub creates a hub whose publishers retry while the slowest
// subscriber lags capacity values behind.
func NewBoundedHub[A any](capacity int) *THub[A] {
	return newHub[A](capacity, BackPressure)
}

// NewDroppingHub creates a hub that rejects publishes while the slowest
// subscriber lags capacity values behind.
func NewDroppingHub[A any](capacity int) *THub[A] {
	return newHub[A](capacity, Dropping)
}

// NewUnboundedHub creates a hub without a capacity limit.
func NewUnboundedHub[A any]() *THub[A] {
	return newHub[A](math.MaxInt, BackPressure)
}

func newHub[A any](capacity int, strategy Strategy) *THub[A] {
	if capacity < 1 {
		capacity = 1
	}
	return &THub[A]{
		capacity:    capacity,
		strategy:    strategy,
		tail:        stm.MakeCommitted(stm.MakeCommitted[*hubNode[A]](nil)),
		size:        stm.MakeCommitted(0),
		subscribers: stm.MakeCommitted(0),
	}
}

// Capacity returns the maximum lag between publishers and the slowest
// subscriber.
func (h *THub[A]) Capacity() int {
	return h.capacity
}

// Size returns the number of values not yet consumed by every subscriber.
func (h *THub[A]) Size() stm.STM[int] {
	return h.size.Get()
}

// Subscribers returns the number of open subscriptions.
func (h *THub[A]) Subscribers() stm.STM[int] {
	return h.subscribers.Get()
}

// Publish broadcasts a to every current subscriber. With no subscribers
// the value is discarded and Publish reports true. A full dropping hub
// reports false; a full back-pressure hub retries.
func (h *THub[A]) Publish(a A) stm.STM[bool] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[bool] {
		subscribers := h.subscribers.UnsafeGet(d)
		if subscribers == 0 {
			return stm.Succeed(true)
		}

		size := h.size.UnsafeGet(d)
		if size >= h.capacity {
			if h.strategy == Dropping {
				return stm.Succeed(false)
			}
			return stm.Retry[bool]()
		}

		slot := h.tail.UnsafeGet(d)
		next := stm.UnsafeMake[*hubNode[A]](d, nil)
		slot.UnsafeSet(d, &hubNode[A]{value: a, remaining: subscribers, next: next})
		h.tail.UnsafeSet(d, next)
		h.size.UnsafeSet(d, size+1)
		return stm.Succeed(true)
	})
}

// PublishAll publishes every element of as in one transaction. Reports
// whether all of them were accepted.
func (h *THub[A]) PublishAll(as []A) stm.STM[bool] {
	return stm.Map(stm.ForEach(as, h.Publish), func(accepted []bool) bool {
		for _, ok := range accepted {
			if !ok {
				return false
			}
		}
		return true
	})
}

// Subscribe opens a subscription that observes values published after the
// subscribing transaction commits.
func (h *THub[A]) Subscribe() stm.STM[*Subscription[A]] {
	return stm.Effect(func(d *stm.Driver) *Subscription[A] {
		h.subscribers.UnsafeSet(d, h.subscribers.UnsafeGet(d)+1)
		return &Subscription[A]{
			hub:    h,
			cursor: stm.UnsafeMake(d, h.tail.UnsafeGet(d)),
			open:   stm.UnsafeMake(d, true),
		}
	})
}

// Subscription is one subscriber's view of a THub.
type Subscription[A any] struct {
	hub    *THub[A]
	cursor *stm.TRef[*stm.TRef[*hubNode[A]]]
	open   *stm.TRef[bool]
}

// consume marks the node in slot as read by this subscriber and advances
// the cursor past it.
func (s *Subscription[A]) consume(d *stm.Driver, slot *stm.TRef[*hubNode[A]], n *hubNode[A]) {
	if n.remaining == 1 {
		s.hub.size.UnsafeSet(d, s.hub.size.UnsafeGet(d)-1)
	}
	slot.UnsafeSet(d, &hubNode[A]{value: n.value, remaining: n.remaining - 1, next: n.next})
	s.cursor.UnsafeSet(d, n.next)
}

// Take returns the next value, retrying until one is published. A closed
// subscription fails with ErrSubscriptionClosed.
func (s *Subscription[A]) Take() stm.STM[A] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[A] {
		if !s.open.UnsafeGet(d) {
			return stm.Fail[A](ErrSubscriptionClosed)
		}
		slot := s.cursor.UnsafeGet(d)
		n := slot.UnsafeGet(d)
		if n == nil {
			return stm.Retry[A]()
		}
		s.consume(d, slot, n)
		return stm.Succeed(n.value)
	})
}

// Poll returns the next value if one is available.
func (s *Subscription[A]) Poll() stm.STM[Maybe[A]] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[Maybe[A]] {
		if !s.open.UnsafeGet(d) {
			return stm.Fail[Maybe[A]](ErrSubscriptionClosed)
		}
		slot := s.cursor.UnsafeGet(d)
		n := slot.UnsafeGet(d)
		if n == nil {
			return stm.Succeed(None[A]())
		}
		s.consume(d, slot, n)
		return stm.Succeed(Some(n.value))
	})
}

// TakeAll returns every value currently available.
func (s *Subscription[A]) TakeAll() stm.STM[[]A] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[[]A] {
		if !s.open.UnsafeGet(d) {
			return stm.Fail[[]A](ErrSubscriptionClosed)
		}
		var out []A
		for {
			slot := s.cursor.UnsafeGet(d)
			n := slot.UnsafeGet(d)
			if n == nil {
				return stm.Succeed(out)
			}
			s.consume(d, slot, n)
			out = append(out, n.value)
		}
	})
}

// Size returns the number of values waiting for this subscriber.
func (s *Subscription[A]) Size() stm.STM[int] {
	return stm.Effect(func(d *stm.Driver) int {
		count := 0
		for n := s.cursor.UnsafeGet(d).UnsafeGet(d); n != nil; n = n.next.UnsafeGet(d) {
			count++
		}
		return count
	})
}

// Unsubscribe closes the subscription and releases the values it had not
// consumed, so they no longer count against the hub's capacity.
func (s *Subscription[A]) Unsubscribe() stm.STM[struct{}] {
	return stm.Effect(func(d *stm.Driver) struct{} {
		if !s.open.UnsafeGet(d) {
			return struct{}{}
		}
		for {
			slot := s.cursor.UnsafeGet(d)
			n := slot.UnsafeGet(d)
			if n == nil {
				break
			}
			s.consume(d, slot, n)
		}
		s.open.UnsafeSet(d, false)
		s.hub.subscribers.UnsafeSet(d, s.hub.subscribers.UnsafeGet(d)-1)
		return struct{}{}
	})
}
