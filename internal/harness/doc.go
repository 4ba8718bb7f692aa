// Package harness runs scenario workloads against the STM engine.
//
// A scenario is a YAML file that seeds integer cells, declares labelled
// transactions built from simple steps (read, require, add, set, fail,
// die, retry) and asserts on the outcome. Every transaction instance is
// committed concurrently on one engine, so scenarios exercise conflicts,
// retry suspension and wake-up for real.
//
// # Execution
//
//  1. The document is checked against the embedded CUE schema, then
//     decoded strictly and validated semantically
//  2. Each instance commits with its own fiber; instances still suspended
//     when the settle window closes are interrupted
//  3. Outcomes (committed, failed, died, interrupted) and the final cell
//     values are written to a SQLite trace store
//  4. Assertions (final_state, outcome_count, total) query the store
//
// # Golden snapshots
//
// Outcome order depends on scheduling, so snapshots hold only the final
// cells and per-label outcome counts, serialized as canonical JSON.
// Regenerate them with:
//
//	go test ./internal/harness -update
//
// Example scenario:
//
//	name: transfer
//	description: two of three transfers fit the balance
//	cells: {a: 100, b: 0}
//	transactions:
//	  - label: transfer
//	    instances: 3
//	    steps:
//	      - {op: require, cell: a, min: 50}
//	      - {op: add, cell: a, delta: -50}
//	      - {op: add, cell: b, delta: 50}
//	settle: 100ms
//	assertions:
//	  - {type: final_state, cell: a, expect: 0}
//	  - {type: outcome_count, label: transfer, outcome: interrupted, count: 1}
package harness
