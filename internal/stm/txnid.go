package stm

import (
	"bytes"
	"sync"

	"github.com/google/uuid"
)

// TxnID identifies one suspended transaction.
//
// It keys the transaction's wake-up callbacks in every cell it is parked
// on, which makes registration and removal idempotent: registering twice
// under the same id replaces the previous callback.
type TxnID uuid.UUID

// String returns the hyphenated UUID form.
func (id TxnID) String() string {
	return uuid.UUID(id).String()
}

// Compare orders ids by their bytes. UUIDv7 ids therefore order by
// creation time.
func (id TxnID) Compare(other TxnID) int {
	return bytes.Compare(id[:], other[:])
}

// TxnIDGenerator produces TxnIDs for suspended transactions.
// Implemented by UUIDv7Generator (production) and SequentialGenerator (tests).
type TxnIDGenerator interface {
	Generate() TxnID
}

// UUIDv7Generator generates time-sortable UUIDv7 transaction ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() TxnID {
	return TxnID(uuid.Must(uuid.NewV7()))
}

// SequentialGenerator returns ids whose last eight bytes count up from 1.
//
// This keeps test output and wake-up ordering deterministic.
//
// Thread-safety: SequentialGenerator is safe for concurrent use via internal mutex.
type SequentialGenerator struct {
	mu   sync.Mutex
	next uint64
}

// NewSequentialGenerator creates a generator whose first id ends in 1.
func NewSequentialGenerator() *SequentialGenerator {
	return &SequentialGenerator{}
}

// Generate returns the next id in sequence.
func (g *SequentialGenerator) Generate() TxnID {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.next++
	var id TxnID
	n := g.next
	for i := len(id) - 1; i >= 8; i-- {
		id[i] = byte(n)
		n >>= 8
	}
	return id
}
