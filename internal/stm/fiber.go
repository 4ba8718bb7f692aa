package stm

import (
	"context"
	"strconv"
	"sync/atomic"
)

// FiberID identifies the logical caller a transaction runs on behalf of.
//
// It tags interrupt causes and is how ownership-based collections (the
// reentrant lock) tell callers apart. A goroutine that wants a stable
// identity across several commits attaches one with WithFiber; Commit
// allocates a fresh one otherwise.
type FiberID uint64

// FiberNone is the zero FiberID. It never identifies a real caller.
const FiberNone FiberID = 0

var fiberIDs atomic.Uint64

// NewFiberID allocates a process-unique FiberID.
func NewFiberID() FiberID {
	return FiberID(fiberIDs.Add(1))
}

// String renders the id as "#n", or "none" for FiberNone.
func (f FiberID) String() string {
	if f == FiberNone {
		return "none"
	}
	return "#" + strconv.FormatUint(uint64(f), 10)
}

type fiberKey struct{}

// WithFiber returns a copy of ctx carrying id.
func WithFiber(ctx context.Context, id FiberID) context.Context {
	return context.WithValue(ctx, fiberKey{}, id)
}

// FiberFrom extracts the FiberID attached by WithFiber.
func FiberFrom(ctx context.Context) (FiberID, bool) {
	id, ok := ctx.Value(fiberKey{}).(FiberID)
	if !ok || id == FiberNone {
		return FiberNone, false
	}
	return id, true
}
