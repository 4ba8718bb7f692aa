// Package stm implements software transactional memory.
//
// Shared state lives in TRef cells. Code that reads and writes cells is
// written as an STM program: a lazily built description that Commit runs
// atomically and in isolation from every other transaction.
//
// ARCHITECTURE:
//
// Programs:
// Combinators (FlatMap, CatchAll, OrElse, Ensuring, ...) only build nodes.
// A Driver interprets them with an explicit frame stack, so arbitrarily deep
// compositions never grow the goroutine stack, and a retried transaction
// simply re-runs the same program value.
//
// Journals:
// Every attempt gets a fresh Journal. The first access to a cell snapshots
// its committed version; later accesses see the attempt-local value. Nothing
// is visible to other transactions before commit.
//
// Commit:
// A successful attempt that wrote something is validated and installed
// under one process-wide commit lock and one logical clock stamp. A stale
// journal means a conflict and the attempt is re-run. Attempts also
// re-validate whenever they meet a cell committed after they started, so an
// attempt never observes an inconsistent mix of versions.
//
// Retry:
// A program that retries is suspended: a wake-up todo is parked on every
// cell it read. The next commit that writes one of those cells schedules the
// todo, which re-runs the program from scratch. Cancelling the caller's
// context interrupts a suspended transaction.
//
// Outcomes:
// Fail is a typed, recoverable error. Die (including panics) and Interrupt
// skip every handler. Retry is a control signal, not an error. A broken
// engine invariant is logged and panics with ErrEngineDefect.
package stm
