package stm

import (
	"errors"
	"fmt"
)

// Engine errors.
var (
	// ErrEngineDefect marks a broken engine invariant (an Invalid journal,
	// an unknown program node). It is never delivered as a Cause: the engine
	// logs it and panics.
	ErrEngineDefect = errors.New("stm: engine invariant violated")

	// ErrInterrupted matches every interrupt Cause via errors.Is.
	ErrInterrupted = errors.New("stm: interrupted")
)

// CauseKind categorizes why a transaction did not succeed.
type CauseKind int

const (
	// CauseFail is a typed, expected failure raised with Fail.
	CauseFail CauseKind = iota + 1
	// CauseDie is a defect: an explicit Die or a recovered panic.
	CauseDie
	// CauseInterrupt is cooperative cancellation.
	CauseInterrupt
)

// String returns the lower-case name of the kind.
func (k CauseKind) String() string {
	switch k {
	case CauseFail:
		return "fail"
	case CauseDie:
		return "die"
	case CauseInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Cause is the externally visible outcome of a transaction that did not
// succeed. It implements error so Commit can return it directly.
//
// Only CauseFail unwraps to the user's error; defects are kept out of the
// errors.Is/As chain so that ordinary error handling cannot swallow them.
type Cause struct {
	// Kind identifies the category.
	Kind CauseKind

	// Err is the typed error of a CauseFail.
	Err error

	// Defect is the value passed to Die or recovered from a panic.
	Defect any

	// Fiber is the interrupting fiber of a CauseInterrupt.
	Fiber FiberID

	// Stack is an optional stack annotation, captured when the engine runs
	// with WithStackTraces(true).
	Stack string
}

// FailCause builds a CauseFail.
func FailCause(err error) *Cause {
	return &Cause{Kind: CauseFail, Err: err}
}

// DieCause builds a CauseDie.
func DieCause(defect any) *Cause {
	return &Cause{Kind: CauseDie, Defect: defect}
}

// InterruptCause builds a CauseInterrupt.
func InterruptCause(fiber FiberID) *Cause {
	return &Cause{Kind: CauseInterrupt, Fiber: fiber}
}

// Annotate returns a copy of c carrying stack. An empty stack leaves the
// existing annotation in place.
func Annotate(c *Cause, stack string) *Cause {
	if c == nil {
		return nil
	}
	out := *c
	if stack != "" {
		out.Stack = stack
	}
	return &out
}

// Error implements the error interface.
func (c *Cause) Error() string {
	switch c.Kind {
	case CauseFail:
		return fmt.Sprintf("stm: transaction failed: %v", c.Err)
	case CauseDie:
		return fmt.Sprintf("stm: transaction died: %v", c.Defect)
	case CauseInterrupt:
		return fmt.Sprintf("stm: transaction interrupted (fiber=%s)", c.Fiber)
	default:
		return "stm: unknown cause"
	}
}

// Unwrap exposes the typed error of a failure.
func (c *Cause) Unwrap() error {
	if c.Kind == CauseFail {
		return c.Err
	}
	return nil
}

// Is makes errors.Is(err, ErrInterrupted) true for interrupt causes.
func (c *Cause) Is(target error) bool {
	return target == ErrInterrupted && c.Kind == CauseInterrupt
}

// AsCause extracts a *Cause from err.
// Uses errors.As to handle wrapped errors.
func AsCause(err error) (*Cause, bool) {
	var c *Cause
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// IsFailure returns true if err is a typed transaction failure.
func IsFailure(err error) bool {
	c, ok := AsCause(err)
	return ok && c.Kind == CauseFail
}

// IsDefect returns true if err is a transaction defect.
func IsDefect(err error) bool {
	c, ok := AsCause(err)
	return ok && c.Kind == CauseDie
}

// IsInterrupted returns true if err is a transaction interruption.
func IsInterrupted(err error) bool {
	c, ok := AsCause(err)
	return ok && c.Kind == CauseInterrupt
}

// Exit is the final outcome of a committed program.
// Exactly one of Value (when Cause is nil) or Cause is meaningful.
type Exit[A any] struct {
	Value A
	Cause *Cause
}

// IsSuccess reports whether the transaction committed a value.
func (e Exit[A]) IsSuccess() bool {
	return e.Cause == nil
}

// Err returns the cause as an error, or nil on success.
func (e Exit[A]) Err() error {
	if e.Cause == nil {
		return nil
	}
	return e.Cause
}
