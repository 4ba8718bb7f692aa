// Package collections provides transactional data structures built on
// package stm.
//
// Every operation returns an stm.STM program, so operations on several
// collections (and plain TRefs) compose into one atomic transaction.
// Blocking operations such as TQueue.Take are expressed with stm.Retry:
// the transaction suspends until a commit changes a cell it read.
//
// Collections are built from TRef cells holding immutable values. Slices
// and maps held in a cell are never modified in place; updates store a
// modified copy.
package collections
