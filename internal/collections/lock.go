package collections

import (
	"context"
	"fmt"
	"maps"

	"github.com/roach88/stm/internal/stm"
)

// lockState is the immutable state of a TReentrantLock. When writer is
// FiberNone the lock is in read mode and readers holds the read counts of
// every fiber; otherwise writer holds writes write locks and readers holds
// only the writer's own read locks.
type lockState struct {
	writer  stm.FiberID
	writes  int
	readers map[stm.FiberID]int
}

func (s lockState) readCount() int {
	total := 0
	for _, n := range s.readers {
		total += n
	}
	return total
}

// withReaders returns a copy of s with fiber's read count set to n.
func (s lockState) withReaders(fiber stm.FiberID, n int) lockState {
	readers := maps.Clone(s.readers)
	if readers == nil {
		readers = make(map[stm.FiberID]int)
	}
	if n == 0 {
		delete(readers, fiber)
	} else {
		readers[fiber] = n
	}
	s.readers = readers
	return s
}

// TReentrantLock is a transactional read/write lock owned by fibers.
//
// Any number of fibers may hold read locks at once. A write lock is
// exclusive, except that its owner may also hold read locks. Both kinds
// are reentrant: a fiber acquiring a lock it already holds increments its
// count, and must release it as many times. Acquiring retries while the
// lock is unavailable.
type TReentrantLock struct {
	state *stm.TRef[lockState]
}

// NewReentrantLock creates an unlocked, already committed lock.
func NewReentrantLock() *TReentrantLock {
	return &TReentrantLock{state: stm.MakeCommitted(lockState{})}
}

// AcquireRead takes a read lock for the running fiber and returns the
// fiber's read count.
func (l *TReentrantLock) AcquireRead() stm.STM[int] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[int] {
		fiber := d.FiberID()
		s := l.state.UnsafeGet(d)
		if s.writer != stm.FiberNone && s.writer != fiber {
			return stm.Retry[int]()
		}
		n := s.readers[fiber] + 1
		l.state.UnsafeSet(d, s.withReaders(fiber, n))
		return stm.Succeed(n)
	})
}

// ReleaseRead releases one read lock of the running fiber and returns the
// fiber's remaining read count. Releasing a lock the fiber does not hold
// dies with ErrLockNotHeld.
func (l *TReentrantLock) ReleaseRead() stm.STM[int] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[int] {
		fiber := d.FiberID()
		s := l.state.UnsafeGet(d)
		held := s.readers[fiber]
		if held == 0 {
			return stm.Die[int](fmt.Errorf("%w: %s holds no read lock", ErrLockNotHeld, fiber))
		}
		l.state.UnsafeSet(d, s.withReaders(fiber, held-1))
		return stm.Succeed(held - 1)
	})
}

// AcquireWrite takes the write lock for the running fiber and returns the
// fiber's write count. It retries while another fiber holds any lock.
func (l *TReentrantLock) AcquireWrite() stm.STM[int] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[int] {
		fiber := d.FiberID()
		s := l.state.UnsafeGet(d)

		switch {
		case s.writer == fiber:
			s.writes++
		case s.writer != stm.FiberNone:
			return stm.Retry[int]()
		case s.readCount() > s.readers[fiber]:
			// Other fibers hold read locks.
			return stm.Retry[int]()
		default:
			s.writer = fiber
			s.writes = 1
		}
		l.state.UnsafeSet(d, s)
		return stm.Succeed(s.writes)
	})
}

// ReleaseWrite releases one write lock of the running fiber and returns the
// remaining write count. Releasing a lock the fiber does not hold dies with
// ErrLockNotHeld.
func (l *TReentrantLock) ReleaseWrite() stm.STM[int] {
	return stm.WithRuntime(func(d *stm.Driver) stm.STM[int] {
		fiber := d.FiberID()
		s := l.state.UnsafeGet(d)
		if s.writer != fiber || s.writes == 0 {
			return stm.Die[int](fmt.Errorf("%w: %s holds no write lock", ErrLockNotHeld, fiber))
		}

		s.writes--
		if s.writes == 0 {
			s.writer = stm.FiberNone
		}
		l.state.UnsafeSet(d, s)
		return stm.Succeed(s.writes)
	})
}

// ReadLocks returns the number of read locks held by all fibers.
func (l *TReentrantLock) ReadLocks() stm.STM[int] {
	return stm.Map(l.state.Get(), lockState.readCount)
}

// WriteLocks returns the number of write locks held.
func (l *TReentrantLock) WriteLocks() stm.STM[int] {
	return stm.Map(l.state.Get(), func(s lockState) int { return s.writes })
}

// FiberReadLocks returns the read locks held by the running fiber.
func (l *TReentrantLock) FiberReadLocks() stm.STM[int] {
	return stm.Effect(func(d *stm.Driver) int {
		return l.state.UnsafeGet(d).readers[d.FiberID()]
	})
}

// FiberWriteLocks returns the write locks held by the running fiber.
func (l *TReentrantLock) FiberWriteLocks() stm.STM[int] {
	return stm.Effect(func(d *stm.Driver) int {
		s := l.state.UnsafeGet(d)
		if s.writer != d.FiberID() {
			return 0
		}
		return s.writes
	})
}

// IsLocked reports whether any lock is held.
func (l *TReentrantLock) IsLocked() stm.STM[bool] {
	return stm.Map(l.state.Get(), func(s lockState) bool {
		return s.writes > 0 || s.readCount() > 0
	})
}

// IsWriteLocked reports whether the write lock is held.
func (l *TReentrantLock) IsWriteLocked() stm.STM[bool] {
	return stm.Map(l.WriteLocks(), func(n int) bool { return n > 0 })
}

// WithReadLock runs f while the fiber in ctx holds a read lock. Acquiring
// commits one transaction and releasing another; the release is not
// cancelled by ctx. A ctx without a fiber is given a fresh one.
func (l *TReentrantLock) WithReadLock(ctx context.Context, e *stm.Engine, f func(ctx context.Context) error) error {
	return l.with(ctx, e, l.AcquireRead(), l.ReleaseRead(), f)
}

// WithWriteLock runs f while the fiber in ctx holds the write lock.
func (l *TReentrantLock) WithWriteLock(ctx context.Context, e *stm.Engine, f func(ctx context.Context) error) error {
	return l.with(ctx, e, l.AcquireWrite(), l.ReleaseWrite(), f)
}

func (l *TReentrantLock) with(ctx context.Context, e *stm.Engine, acquire, release stm.STM[int], f func(ctx context.Context) error) error {
	if _, ok := stm.FiberFrom(ctx); !ok {
		ctx = stm.WithFiber(ctx, stm.NewFiberID())
	}

	if _, err := acquire.Commit(ctx, e); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer func() {
		_, _ = release.Commit(context.WithoutCancel(ctx), e)
	}()

	return f(ctx)
}
