package stm

import (
	"context"
	"errors"
)

// opCode is the closed set of program node kinds.
type opCode uint8

const (
	opSucceed opCode = iota
	opSync
	opFail
	opDie
	opRetry
	opInterrupt
	opWithRuntime
	opProvide
	opOnSuccess
	opOnFailure
	opOnRetry
)

// String returns the node kind name.
func (op opCode) String() string {
	switch op {
	case opSucceed:
		return "Succeed"
	case opSync:
		return "Sync"
	case opFail:
		return "Fail"
	case opDie:
		return "Die"
	case opRetry:
		return "Retry"
	case opInterrupt:
		return "Interrupt"
	case opWithRuntime:
		return "WithRuntime"
	case opProvide:
		return "Provide"
	case opOnSuccess:
		return "OnSuccess"
	case opOnFailure:
		return "OnFailure"
	case opOnRetry:
		return "OnRetry"
	default:
		return "Unknown"
	}
}

// node is one immutable program step. Which fields are set depends on op:
//
//	Succeed      value
//	Sync         eval
//	Fail         failure
//	Die          defect
//	Interrupt    fiber (FiberNone means the running fiber)
//	WithRuntime  runtime
//	Provide      first, provide
//	OnSuccess    first, onSuccess
//	OnFailure    first, onFailure
//	OnRetry      first, onRetry
//
// The three On* nodes double as continuation frames on the driver's stack.
type node struct {
	op opCode

	value   any
	eval    func() any
	failure func() error
	defect  func() any
	fiber   FiberID
	runtime func(*Driver) *node
	provide func(context.Context) context.Context

	first     *node
	onSuccess func(any) *node
	onFailure func(error) *node
	onRetry   func() *node
}

// STM is a description of a transactional computation producing an A.
//
// Building an STM never runs anything; Commit runs it against a fresh
// journal, possibly many times. Programs carry no execution state, so a
// retried transaction re-runs the same value from scratch.
//
// The zero STM is not a valid program; running it dies.
type STM[A any] struct {
	n *node
}

func succeedNode(v any) *node {
	return &node{op: opSucceed, value: v}
}

func syncNode(f func() any) *node {
	return &node{op: opSync, eval: f}
}

func failNode(f func() error) *node {
	return &node{op: opFail, failure: f}
}

func flatMapNode(first *node, k func(any) *node) *node {
	return &node{op: opOnSuccess, first: first, onSuccess: k}
}

func catchNode(first *node, h func(error) *node) *node {
	return &node{op: opOnFailure, first: first, onFailure: h}
}

func onRetryNode(first *node, h func() *node) *node {
	return &node{op: opOnRetry, first: first, onRetry: h}
}

// foldLeft carries a caught failure past the success frame of foldNode.
type foldLeft struct {
	err error
}

// foldNode runs onFailure or onSuccess after first completes. Both
// handlers run outside the frame that caught the failure, so a failure
// raised by a handler propagates instead of re-entering onFailure.
func foldNode(first *node, onFailure func(error) *node, onSuccess func(any) *node) *node {
	caught := catchNode(first, func(err error) *node {
		return succeedNode(foldLeft{err: err})
	})
	return flatMapNode(caught, func(v any) *node {
		if left, ok := v.(foldLeft); ok {
			return onFailure(left.err)
		}
		return onSuccess(v)
	})
}

// ensuringNode runs finalizer after first succeeds or fails, then
// re-raises first's outcome.
func ensuringNode(first, finalizer *node) *node {
	return foldNode(first,
		func(err error) *node {
			return flatMapNode(finalizer, func(any) *node {
				return failNode(func() error { return err })
			})
		},
		func(v any) *node {
			return flatMapNode(finalizer, func(any) *node {
				return succeedNode(v)
			})
		},
	)
}

// Succeed returns a program producing a.
func Succeed[A any](a A) STM[A] {
	return STM[A]{n: succeedNode(a)}
}

// Unit returns a program producing the empty struct.
func Unit() STM[struct{}] {
	return Succeed(struct{}{})
}

// Sync returns a program producing f(). A panic in f becomes a defect.
func Sync[A any](f func() A) STM[A] {
	return STM[A]{n: syncNode(func() any { return f() })}
}

// Suspend defers building a program until it runs. Use it for programs
// that need fresh per-attempt state.
func Suspend[A any](f func() STM[A]) STM[A] {
	return STM[A]{n: &node{op: opWithRuntime, runtime: func(*Driver) *node {
		return f().n
	}}}
}

// Fail returns a program failing with err.
func Fail[A any](err error) STM[A] {
	return STM[A]{n: failNode(func() error { return err })}
}

// FailWith returns a program failing with the error f returns.
func FailWith[A any](f func() error) STM[A] {
	return STM[A]{n: failNode(f)}
}

// Die returns a program terminating with defect. Die is not caught by
// CatchAll, OrElse or any other handler.
func Die[A any](defect any) STM[A] {
	return STM[A]{n: &node{op: opDie, defect: func() any { return defect }}}
}

// DieMessage dies with an error built from msg.
func DieMessage[A any](msg string) STM[A] {
	return Die[A](errors.New(msg))
}

// Retry aborts the attempt. If no OrTry/OrElse handles it, the transaction
// suspends until a cell it read is committed by another transaction.
func Retry[A any]() STM[A] {
	return STM[A]{n: &node{op: opRetry}}
}

// Interrupt terminates the transaction with an interruption of the
// running fiber.
func Interrupt[A any]() STM[A] {
	return InterruptAs[A](FiberNone)
}

// InterruptAs terminates the transaction with an interruption by fiber.
func InterruptAs[A any](fiber FiberID) STM[A] {
	return STM[A]{n: &node{op: opInterrupt, fiber: fiber}}
}

// WithRuntime gives f direct access to the running Driver. It is the
// escape hatch for building new primitives against the journal; f runs
// synchronously on every attempt.
func WithRuntime[A any](f func(d *Driver) STM[A]) STM[A] {
	return STM[A]{n: &node{op: opWithRuntime, runtime: func(d *Driver) *node {
		return f(d).n
	}}}
}

// Effect is WithRuntime for callbacks that produce a value directly.
func Effect[A any](f func(d *Driver) A) STM[A] {
	return STM[A]{n: &node{op: opWithRuntime, runtime: func(d *Driver) *node {
		return succeedNode(f(d))
	}}}
}

// Context returns the environment the program runs in.
func Context() STM[context.Context] {
	return Effect(func(d *Driver) context.Context {
		return d.Context()
	})
}

// CurrentFiber returns the fiber the transaction runs on behalf of.
func CurrentFiber() STM[FiberID] {
	return Effect(func(d *Driver) FiberID {
		return d.FiberID()
	})
}

// Provide runs p with the environment transformed by f. The previous
// environment is restored when p succeeds or fails.
func Provide[A any](p STM[A], f func(context.Context) context.Context) STM[A] {
	return STM[A]{n: &node{op: opProvide, first: p.n, provide: f}}
}

// ProvideValue runs p with key bound to val in its environment.
func ProvideValue[A any](p STM[A], key, val any) STM[A] {
	return Provide(p, func(ctx context.Context) context.Context {
		return context.WithValue(ctx, key, val)
	})
}
