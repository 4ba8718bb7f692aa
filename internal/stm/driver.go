package stm

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// exitKind identifies how one attempt ended.
type exitKind uint8

const (
	exitSucceed exitKind = iota
	exitFail
	exitDie
	exitInterrupt
	exitRetry

	// exitConflict means the attempt observed a stale snapshot and must be
	// re-run from scratch. It never leaves the commit protocol.
	exitConflict
)

// String returns the exit kind name.
func (k exitKind) String() string {
	switch k {
	case exitSucceed:
		return "succeed"
	case exitFail:
		return "fail"
	case exitDie:
		return "die"
	case exitInterrupt:
		return "interrupt"
	case exitRetry:
		return "retry"
	case exitConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// texit is the terminal result of one attempt.
type texit struct {
	kind   exitKind
	value  any
	err    error
	defect any
	fiber  FiberID
	stack  string
}

// cause maps a terminal failure to its external form.
func (x texit) cause() *Cause {
	var c *Cause
	switch x.kind {
	case exitFail:
		c = FailCause(x.err)
	case exitDie:
		c = DieCause(x.defect)
	case exitInterrupt:
		c = InterruptCause(x.fiber)
	default:
		return nil
	}
	return Annotate(c, x.stack)
}

var errNilProgram = errors.New("stm: nil program")

// Driver interprets one attempt of a program against one Journal.
//
// A Driver is created per attempt and is confined to the goroutine running
// that attempt. WithRuntime and Effect callbacks receive it to reach the
// journal, the fiber identity and the current environment.
type Driver struct {
	journal *Journal
	fiber   FiberID
	ctx     context.Context

	// stack holds the pending OnSuccess/OnFailure/OnRetry frames.
	stack []*node

	traces bool
}

func newDriver(j *Journal, fiber FiberID, ctx context.Context, traces bool) *Driver {
	return &Driver{
		journal: j,
		fiber:   fiber,
		ctx:     ctx,
		stack:   make([]*node, 0, 16),
		traces:  traces,
	}
}

// FiberID returns the fiber the attempt runs on behalf of.
func (d *Driver) FiberID() FiberID {
	return d.fiber
}

// Context returns the current environment.
func (d *Driver) Context() context.Context {
	return d.ctx
}

// run interprets root until it terminates. It never panics except for
// engine defects.
func (d *Driver) run(root *node) texit {
	cur := root
	for {
		next, exit := d.step(cur)
		if exit != nil {
			return *exit
		}
		cur = next
	}
}

// step evaluates one node. It returns either the next node or a terminal
// exit. Panics raised by user callbacks become defects.
func (d *Driver) step(cur *node) (next *node, exit *texit) {
	defer func() {
		if r := recover(); r != nil {
			next, exit = nil, d.recovered(r)
		}
	}()

	if cur == nil {
		return nil, d.die(errNilProgram)
	}

	switch cur.op {
	case opSucceed:
		return d.succeed(cur.value)

	case opSync:
		return d.succeed(cur.eval())

	case opFail:
		return d.fail(cur.failure())

	case opDie:
		return nil, d.die(cur.defect())

	case opRetry:
		return d.retry()

	case opInterrupt:
		fiber := cur.fiber
		if fiber == FiberNone {
			fiber = d.fiber
		}
		return nil, &texit{kind: exitInterrupt, fiber: fiber}

	case opWithRuntime:
		return cur.runtime(d), nil

	case opProvide:
		return d.provide(cur), nil

	case opOnSuccess, opOnFailure, opOnRetry:
		d.stack = append(d.stack, cur)
		return cur.first, nil

	default:
		panic(fmt.Errorf("%w: unknown program node %s", ErrEngineDefect, cur.op))
	}
}

// succeed unwinds to the nearest OnSuccess frame.
func (d *Driver) succeed(v any) (*node, *texit) {
	for len(d.stack) > 0 {
		f := d.pop()
		if f.op == opOnSuccess {
			return f.onSuccess(v), nil
		}
	}
	return nil, &texit{kind: exitSucceed, value: v}
}

// fail unwinds to the nearest OnFailure frame.
func (d *Driver) fail(err error) (*node, *texit) {
	for len(d.stack) > 0 {
		f := d.pop()
		if f.op == opOnFailure {
			return f.onFailure(err), nil
		}
	}
	return nil, &texit{kind: exitFail, err: err}
}

// retry unwinds to the nearest OnRetry frame.
func (d *Driver) retry() (*node, *texit) {
	for len(d.stack) > 0 {
		f := d.pop()
		if f.op == opOnRetry {
			return f.onRetry(), nil
		}
	}
	return nil, &texit{kind: exitRetry}
}

func (d *Driver) die(defect any) *texit {
	x := &texit{kind: exitDie, defect: defect}
	if d.traces {
		x.stack = string(debug.Stack())
	}
	return x
}

// provide installs a new environment for cur.first and arranges for the
// previous one to come back on success, failure or retry.
func (d *Driver) provide(cur *node) *node {
	prev := d.ctx
	d.ctx = cur.provide(prev)

	restore := func() any {
		d.ctx = prev
		return nil
	}
	return onRetryNode(ensuringNode(cur.first, syncNode(restore)), func() *node {
		restore()
		return &node{op: opRetry}
	})
}

func (d *Driver) pop() *node {
	last := len(d.stack) - 1
	f := d.stack[last]
	d.stack[last] = nil
	d.stack = d.stack[:last]
	return f
}

// recovered converts a recovered panic into an exit. Conflicts restart the
// attempt; engine defects keep unwinding.
func (d *Driver) recovered(r any) *texit {
	switch v := r.(type) {
	case conflictSignal:
		return &texit{kind: exitConflict}
	case error:
		if errors.Is(v, ErrEngineDefect) {
			panic(v)
		}
	}
	return d.die(r)
}
