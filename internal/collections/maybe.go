package collections

import "errors"

// Collection errors.
var (
	// ErrIndexOutOfRange is the defect raised by TArray on a bad index.
	ErrIndexOutOfRange = errors.New("collections: index out of range")

	// ErrSubscriptionClosed is the failure returned by a Subscription after
	// Unsubscribe.
	ErrSubscriptionClosed = errors.New("collections: subscription closed")

	// ErrLockNotHeld is the defect raised when a fiber releases a lock it
	// does not hold.
	ErrLockNotHeld = errors.New("collections: lock not held by fiber")
)

// Maybe is an optional value returned by non-blocking lookups.
type Maybe[A any] struct {
	Value A
	OK    bool
}

// Some returns a present value.
func Some[A any](a A) Maybe[A] {
	return Maybe[A]{Value: a, OK: true}
}

// None returns an absent value.
func None[A any]() Maybe[A] {
	return Maybe[A]{}
}

// OrElse returns the value if present, otherwise fallback.
func (m Maybe[A]) OrElse(fallback A) A {
	if m.OK {
		return m.Value
	}
	return fallback
}

// Strategy decides what a bounded queue or hub does when it is full.
type Strategy int

const (
	// BackPressure makes the producer retry until there is room.
	BackPressure Strategy = iota
	// Dropping discards the new element and reports false.
	Dropping
	// Sliding discards the oldest element to make room.
	Sliding
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case BackPressure:
		return "back-pressure"
	case Dropping:
		return "dropping"
	case Sliding:
		return "sliding"
	default:
		return "unknown"
	}
}
