package stm

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Commit runs p until it succeeds, fails, dies or is interrupted.
//
// A program that retries suspends until another transaction commits a cell
// the retrying attempt read, then runs again from scratch. Cancelling ctx
// interrupts a suspended transaction; an attempt already running finishes
// first. The fiber is taken from ctx (WithFiber) or freshly allocated, and
// ctx is the program's initial environment.
//
// On anything but success the error is a *Cause.
func Commit[A any](ctx context.Context, e *Engine, p STM[A]) (A, error) {
	exit := CommitExit(ctx, e, p)
	if exit.Cause != nil {
		return exit.Value, exit.Cause
	}
	return exit.Value, nil
}

// Commit is the method form of the package-level Commit.
func (p STM[A]) Commit(ctx context.Context, e *Engine) (A, error) {
	return Commit(ctx, e, p)
}

// CommitExit is Commit returning the outcome as an Exit.
func CommitExit[A any](ctx context.Context, e *Engine, p STM[A]) Exit[A] {
	x := e.commit(ctx, p.n)
	if x.kind == exitSucceed {
		return Exit[A]{Value: cast[A](x.value)}
	}
	return Exit[A]{Cause: x.cause()}
}

func (e *Engine) commit(ctx context.Context, root *node) texit {
	fiber, ok := FiberFrom(ctx)
	if !ok {
		fiber = NewFiberID()
	}

	x := e.run(ctx, fiber, root)
	e.metrics.observe(x.cause())
	return x
}

func (e *Engine) run(ctx context.Context, fiber FiberID, root *node) texit {
	if ctx.Err() != nil {
		return texit{kind: exitInterrupt, fiber: fiber}
	}

	j, x := e.attempt(ctx, fiber, root)
	if x.kind != exitRetry {
		return x
	}
	return e.suspend(ctx, fiber, root, j)
}

// attempt runs root against fresh journals until an attempt ends without a
// conflict. A successful read-write attempt is committed and the todos of
// the cells it wrote are scheduled. Retry is returned with the journal of
// the attempt that retried.
func (e *Engine) attempt(ctx context.Context, fiber FiberID, root *node) (*Journal, texit) {
	for {
		e.metrics.attempts.Inc()

		j := newJournal()
		x := newDriver(j, fiber, ctx, e.traces).run(root)
		if x.kind == exitConflict {
			e.conflict(fiber, "read")
			continue
		}

		analysis := j.analyze()
		if analysis == analysisInvalid {
			e.defect(fiber, j, x)
		}
		if x.kind != exitSucceed || analysis == analysisReadOnly {
			return j, x
		}

		todos, ok := j.commit()
		if !ok {
			e.conflict(fiber, "commit")
			continue
		}
		e.execTodos(todos)
		return j, x
	}
}

func (e *Engine) conflict(fiber FiberID, stage string) {
	e.metrics.conflicts.Inc()
	e.logger.Debug("transaction conflict",
		"fiber", fiber.String(),
		"stage", stage,
	)
}

// defect reports a broken engine invariant. It does not return.
func (e *Engine) defect(fiber FiberID, j *Journal, x texit) {
	e.logger.Error("invalid journal",
		"fiber", fiber.String(),
		"cells", j.Len(),
		"exit", x.kind.String(),
		"event", "engine_defect",
	)
	panic(fmt.Errorf("%w: invalid journal (fiber=%s)", ErrEngineDefect, fiber))
}

// execTodos hands woken transactions to the scheduler in TxnID order.
func (e *Engine) execTodos(todos map[TxnID]func()) {
	if len(todos) == 0 {
		return
	}
	ids := make([]TxnID, 0, len(todos))
	for id := range todos {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, TxnID.Compare)

	for _, id := range ids {
		e.scheduler.ScheduleTask(todos[id])
	}
}

// txnState is the lifecycle of a suspended transaction.
type txnState int

const (
	txnRunning txnState = iota
	txnInterrupted
	txnDone
)

// asyncCommit is a transaction waiting for a wake-up.
//
// mu is held for the whole of every attempt made on behalf of the
// transaction, so an interruption either happens before an attempt starts
// or after its outcome is recorded, never in the middle.
type asyncCommit struct {
	engine *Engine
	ctx    context.Context
	fiber  FiberID
	root   *node
	id     TxnID

	mu    sync.Mutex
	state txnState

	// epoch counts suspensions. A todo only acts on the suspension that
	// registered it.
	epoch uint64

	// journal is the retrying attempt's journal while parked.
	journal *Journal

	result chan texit // buffered, size 1
}

func (e *Engine) suspend(ctx context.Context, fiber FiberID, root *node, j *Journal) texit {
	ac := &asyncCommit{
		engine: e,
		ctx:    ctx,
		fiber:  fiber,
		root:   root,
		id:     e.txnIDs.Generate(),
		result: make(chan texit, 1),
	}

	ac.mu.Lock()
	ac.resume(j)
	ac.mu.Unlock()

	select {
	case x := <-ac.result:
		return x
	case <-ctx.Done():
		if ac.interrupt() {
			e.logger.Info("suspended transaction interrupted",
				"txn", ac.id.String(),
				"fiber", fiber.String(),
			)
			return texit{kind: exitInterrupt, fiber: fiber}
		}
		// Finished between the wake-up and the cancellation.
		return <-ac.result
	}
}

// resume parks the transaction on j's read set, re-running it while the
// read set is already stale. Called with mu held and state txnRunning.
func (ac *asyncCommit) resume(j *Journal) {
	e := ac.engine
	for {
		ac.epoch++
		epoch := ac.epoch
		ac.journal = j

		if j.park(ac.id, func() { ac.wake(epoch) }) {
			e.metrics.suspensions.Inc()
			e.logger.Debug("transaction suspended",
				"txn", ac.id.String(),
				"fiber", ac.fiber.String(),
				"cells", j.Len(),
				"epoch", epoch,
			)
			return
		}

		next, x := e.attempt(ac.ctx, ac.fiber, ac.root)
		if x.kind != exitRetry {
			ac.finish(x)
			return
		}
		j = next
	}
}

// wake re-runs the transaction. Late or duplicate wake-ups are no-ops.
func (ac *asyncCommit) wake(epoch uint64) {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.state != txnRunning || epoch != ac.epoch || ac.journal == nil {
		return
	}
	if ac.ctx.Err() != nil {
		// Left parked for the interrupting caller.
		return
	}

	e := ac.engine
	e.metrics.wakeups.Inc()
	e.logger.Debug("transaction woken",
		"txn", ac.id.String(),
		"fiber", ac.fiber.String(),
		"epoch", epoch,
	)

	// Drop the todos still registered on cells the waking commit did not write.
	ac.journal.unpark(ac.id)
	ac.journal = nil

	j, x := e.attempt(ac.ctx, ac.fiber, ac.root)
	if x.kind != exitRetry {
		ac.finish(x)
		return
	}
	ac.resume(j)
}

// interrupt moves a running transaction to txnInterrupted and discards its
// journal. It reports false when the transaction already finished.
func (ac *asyncCommit) interrupt() bool {
	ac.mu.Lock()
	defer ac.mu.Unlock()

	if ac.state != txnRunning {
		return false
	}
	ac.state = txnInterrupted
	if ac.journal != nil {
		ac.journal.unpark(ac.id)
		ac.journal = nil
	}
	return true
}

func (ac *asyncCommit) finish(x texit) {
	ac.state = txnDone
	ac.journal = nil
	ac.result <- x
}
