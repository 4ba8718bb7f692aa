package collections

import (
	"fmt"

	"github.com/roach88/stm/internal/stm"
)

// TArray is a fixed-length array of transactional cells. Elements are
// independent cells, so transactions touching different indexes do not
// conflict.
type TArray[A any] struct {
	cells []*stm.TRef[A]
}

// MakeArray allocates an array holding values inside a transaction.
func MakeArray[A any](values ...A) stm.STM[*TArray[A]] {
	return stm.Effect(func(d *stm.Driver) *TArray[A] {
		cells := make([]*stm.TRef[A], len(values))
		for i, v := range values {
			cells[i] = stm.UnsafeMake(d, v)
		}
		return &TArray[A]{cells: cells}
	})
}

// ArrayFromSlice allocates an already committed array holding values.
func ArrayFromSlice[A any](values []A) *TArray[A] {
	cells := make([]*stm.TRef[A], len(values))
	for i, v := range values {
		cells[i] = stm.MakeCommitted(v)
	}
	return &TArray[A]{cells: cells}
}

// Len returns the number of elements. The length never changes.
func (a *TArray[A]) Len() int {
	return len(a.cells)
}

// Get reads element i. An out-of-range index dies.
func (a *TArray[A]) Get(i int) stm.STM[A] {
	if i < 0 || i >= len(a.cells) {
		return stm.Die[A](a.outOfRange(i))
	}
	return a.cells[i].Get()
}

// Set writes element i. An out-of-range index dies.
func (a *TArray[A]) Set(i int, v A) stm.STM[struct{}] {
	if i < 0 || i >= len(a.cells) {
		return stm.Die[struct{}](a.outOfRange(i))
	}
	return a.cells[i].Set(v)
}

// Update replaces element i with f applied to it.
func (a *TArray[A]) Update(i int, f func(A) A) stm.STM[struct{}] {
	if i < 0 || i >= len(a.cells) {
		return stm.Die[struct{}](a.outOfRange(i))
	}
	return a.cells[i].Update(f)
}

// ToSlice reads every element.
func (a *TArray[A]) ToSlice() stm.STM[[]A] {
	return stm.Effect(func(d *stm.Driver) []A {
		out := make([]A, len(a.cells))
		for i, c := range a.cells {
			out[i] = c.UnsafeGet(d)
		}
		return out
	})
}

// Find returns the first element satisfying pred.
func (a *TArray[A]) Find(pred func(A) bool) stm.STM[Maybe[A]] {
	return stm.Effect(func(d *stm.Driver) Maybe[A] {
		for _, c := range a.cells {
			if v := c.UnsafeGet(d); pred(v) {
				return Some(v)
			}
		}
		return None[A]()
	})
}

// Exists reports whether any element satisfies pred.
func (a *TArray[A]) Exists(pred func(A) bool) stm.STM[bool] {
	return stm.Map(a.Find(pred), func(m Maybe[A]) bool { return m.OK })
}

// Count returns the number of elements satisfying pred.
func (a *TArray[A]) Count(pred func(A) bool) stm.STM[int] {
	return FoldArray(a, 0, func(n int, v A) int {
		if pred(v) {
			return n + 1
		}
		return n
	})
}

// FoldArray folds the elements of a from left to right.
func FoldArray[A, B any](a *TArray[A], zero B, f func(B, A) B) stm.STM[B] {
	return stm.Effect(func(d *stm.Driver) B {
		acc := zero
		for _, c := range a.cells {
			acc = f(acc, c.UnsafeGet(d))
		}
		return acc
	})
}

func (a *TArray[A]) outOfRange(i int) error {
	return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(a.cells))
}
