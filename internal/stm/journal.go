package stm

import (
	"sync"
)

// Commit synchronization.
//
// The validate-then-write step of every commit runs under the write side
// of commitLock and takes one stamp from commitClock. Attempts read
// committed versions without locking but take the read side to fix their
// read stamp, and again to re-validate whenever they first touch a cell
// whose stamp is newer than that read stamp. Per-cell todo maps are only
// touched under the write side.
var (
	commitLock  sync.RWMutex
	commitClock = NewClock()
)

// conflictSignal is panicked by a journal that discovers its snapshot is
// stale mid-attempt. The driver recovers it into an exitConflict.
type conflictSignal struct{}

// entry is the journal record for one cell touched by an attempt.
type entry struct {
	cell *cell

	// expected is the committed version observed on first touch.
	expected *version

	// current is the attempt-local value (read-your-own-writes).
	current any

	// changed is set by any write, including allocation by Make.
	changed bool
}

// journalAnalysis classifies a finished attempt's journal.
type journalAnalysis int

const (
	analysisReadOnly journalAnalysis = iota
	analysisReadWrite
	analysisInvalid
)

// String returns a short label used in logs.
func (a journalAnalysis) String() string {
	switch a {
	case analysisReadOnly:
		return "read-only"
	case analysisReadWrite:
		return "read-write"
	default:
		return "invalid"
	}
}

// Journal is the per-attempt log of every cell the attempt touched.
//
// A Journal is created fresh for each attempt and is never shared between
// two attempts. It is only accessed from the goroutine running the attempt,
// except for park/unpark/commit which synchronize on commitLock.
type Journal struct {
	entries map[*cell]*entry

	// stamp is the clock value at which every entry was known current.
	stamp uint64
}

// newJournal creates an empty journal whose read stamp is taken at a point
// where no commit is installing versions.
func newJournal() *Journal {
	commitLock.RLock()
	stamp := commitClock.Current()
	commitLock.RUnlock()

	return &Journal{
		entries: make(map[*cell]*entry),
		stamp:   stamp,
	}
}

// Len returns the number of cells touched.
func (j *Journal) Len() int {
	return len(j.entries)
}

// read returns the attempt-local value of c, snapshotting it on first touch.
func (j *Journal) read(c *cell) any {
	if e, ok := j.entries[c]; ok {
		return e.current
	}
	return j.snapshot(c).current
}

// write replaces the attempt-local value of c.
func (j *Journal) write(c *cell, v any) {
	e, ok := j.entries[c]
	if !ok {
		e = j.snapshot(c)
	}
	e.current = v
	e.changed = true
}

// track records a freshly allocated cell. The entry is marked changed so
// the allocation is installed atomically with the rest of the commit.
func (j *Journal) track(c *cell) {
	v := c.current.Load()
	j.entries[c] = &entry{cell: c, expected: v, current: v.value, changed: true}
}

func (j *Journal) snapshot(c *cell) *entry {
	v := c.current.Load()
	e := &entry{cell: c, expected: v, current: v.value}
	j.entries[c] = e
	if v.stamp > j.stamp {
		j.extend()
	}
	return e
}

// extend moves the read stamp forward after re-validating every entry,
// including the one just added. A stale entry aborts the attempt.
func (j *Journal) extend() {
	commitLock.RLock()
	stamp := commitClock.Current()
	valid := j.isValid()
	commitLock.RUnlock()

	if !valid {
		panic(conflictSignal{})
	}
	j.stamp = stamp
}

// isValid reports whether every observed version is still committed.
// Callers hold commitLock (either side) for a meaningful answer.
func (j *Journal) isValid() bool {
	for _, e := range j.entries {
		if e.cell.current.Load() != e.expected {
			return false
		}
	}
	return true
}

// analyze classifies the journal. Invalid means an engine invariant broke:
// an entry without a cell, or a snapshot newer than the committed version.
func (j *Journal) analyze() journalAnalysis {
	result := analysisReadOnly
	for c, e := range j.entries {
		if c == nil || e.cell != c || e.expected == nil {
			return analysisInvalid
		}
		if e.expected.stamp > c.current.Load().stamp {
			return analysisInvalid
		}
		if e.changed {
			result = analysisReadWrite
		}
	}
	return result
}

// commit validates the journal and installs every changed entry under one
// clock stamp. It returns the todos registered on the written cells (removed
// from those cells), or ok=false when another commit made the journal stale.
func (j *Journal) commit() (todos map[TxnID]func(), ok bool) {
	commitLock.Lock()
	defer commitLock.Unlock()

	if !j.isValid() {
		return nil, false
	}

	stamp := commitClock.Next()
	for _, e := range j.entries {
		if !e.changed {
			continue
		}
		e.cell.current.Store(&version{value: e.current, stamp: stamp})
		for id, todo := range e.cell.todos {
			if todos == nil {
				todos = make(map[TxnID]func())
			}
			todos[id] = todo
		}
		e.cell.todos = nil
	}
	return todos, true
}

// park registers todo under id on every cell of the journal. The read set
// is re-validated first under the same lock commits take, so a commit that
// happened after the attempt ran cannot slip between validation and
// registration. Returns false when the journal is already stale.
func (j *Journal) park(id TxnID, todo func()) bool {
	commitLock.Lock()
	defer commitLock.Unlock()

	if !j.isValid() {
		return false
	}
	for _, e := range j.entries {
		if e.cell.todos == nil {
			e.cell.todos = make(map[TxnID]func())
		}
		e.cell.todos[id] = todo
	}
	return true
}

// unpark removes every todo registered under id by park.
func (j *Journal) unpark(id TxnID) {
	commitLock.Lock()
	defer commitLock.Unlock()

	for _, e := range j.entries {
		delete(e.cell.todos, id)
	}
}

type savedEntry struct {
	current any
	changed bool
}

// checkpoint captures the attempt-local state and returns a function that
// rolls the journal back to it. Entries created after the checkpoint are
// kept as plain reads so the read set stays complete for validation and
// wake-ups, but their writes are discarded.
func (j *Journal) checkpoint() func() {
	saved := make(map[*cell]savedEntry, len(j.entries))
	for c, e := range j.entries {
		saved[c] = savedEntry{current: e.current, changed: e.changed}
	}

	return func() {
		for c, e := range j.entries {
			if s, ok := saved[c]; ok {
				e.current = s.current
				e.changed = s.changed
				continue
			}
			e.current = e.expected.value
			e.changed = false
		}
	}
}
