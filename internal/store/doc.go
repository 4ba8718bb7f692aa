// Package store provides SQLite-backed storage for scenario run traces.
//
// A run records, for one execution of a scenario:
//   - Outcomes: how each transaction instance ended (committed, failed,
//     died or interrupted), its result value and error text
//   - Cells: the committed value of every cell once the run settled
//
// # Ordering
//
// Outcomes carry a seq INTEGER assigned in completion order. Queries that
// return lists order by seq, then label and instance, so identical runs
// read back identically.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Outcomes and cells must reference a run
//
// The harness opens a fresh ":memory:" store per run; the CLI can keep
// runs in a file with --db.
package store
