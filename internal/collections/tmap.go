package collections

import (
	"hash/maphash"
	"slices"

	"github.com/roach88/stm/internal/stm"
)

const (
	// DefaultMapCapacity is the initial bucket count of NewMap.
	DefaultMapCapacity = 16

	// loadFactor is the size/bucket ratio that triggers a resize.
	loadFactor = 0.75
)

type mapEntry[K comparable, V any] struct {
	key   K
	value V
}

// TMap is a transactional hash map.
//
// Entries live in per-bucket cells, so transactions touching keys in
// different buckets do not conflict. When the number of entries reaches
// three quarters of the bucket count, the put that crossed the threshold
// doubles the buckets and rehashes every entry in the same transaction.
//
// Bucket slices are immutable; updates store a new slice.
type TMap[K comparable, V any] struct {
	seed    maphash.Seed
	buckets *stm.TRef[[]*stm.TRef[[]mapEntry[K, V]]]
	size    *stm.TRef[int]
}

// NewMap allocates an empty, already committed map with capacity buckets.
// A capacity below 1 uses DefaultMapCapacity.
func NewMap[K comparable, V any](capacity int) *TMap[K, V] {
	if capacity < 1 {
		capacity = DefaultMapCapacity
	}
	buckets := make([]*stm.TRef[[]mapEntry[K, V]], capacity)
	for i := range buckets {
		buckets[i] = stm.MakeCommitted[[]mapEntry[K, V]](nil)
	}
	return &TMap[K, V]{
		seed:    maphash.MakeSeed(),
		buckets: stm.MakeCommitted(buckets),
		size:    stm.MakeCommitted(0),
	}
}

// MakeMap allocates a map inside a transaction, populated with entries.
func MakeMap[K comparable, V any](entries map[K]V) stm.STM[*TMap[K, V]] {
	return stm.Effect(func(d *stm.Driver) *TMap[K, V] {
		capacity := DefaultMapCapacity
		for float64(len(entries)) >= float64(capacity)*loadFactor {
			capacity *= 2
		}
		m := &TMap[K, V]{seed: maphash.MakeSeed()}
		buckets := make([]*stm.TRef[[]mapEntry[K, V]], capacity)
		contents := make([][]mapEntry[K, V], capacity)
		for k, v := range entries {
			i := m.index(k, capacity)
			contents[i] = append(contents[i], mapEntry[K, V]{key: k, value: v})
		}
		for i := range buckets {
			buckets[i] = stm.UnsafeMake(d, contents[i])
		}
		m.buckets = stm.UnsafeMake(d, buckets)
		m.size = stm.UnsafeMake(d, len(entries))
		return m
	})
}

func (m *TMap[K, V]) index(k K, n int) int {
	return int(maphash.Comparable(m.seed, k) % uint64(n))
}

func (m *TMap[K, V]) bucketFor(d *stm.Driver, k K) *stm.TRef[[]mapEntry[K, V]] {
	buckets := m.buckets.UnsafeGet(d)
	return buckets[m.index(k, len(buckets))]
}

func (m *TMap[K, V]) lookup(d *stm.Driver, k K) Maybe[V] {
	for _, e := range m.bucketFor(d, k).UnsafeGet(d) {
		if e.key == k {
			return Some(e.value)
		}
	}
	return None[V]()
}

func (m *TMap[K, V]) put(d *stm.Driver, k K, v V) {
	ref := m.bucketFor(d, k)
	entries := ref.UnsafeGet(d)
	for i, e := range entries {
		if e.key == k {
			updated := slices.Clone(entries)
			updated[i].value = v
			ref.UnsafeSet(d, updated)
			return
		}
	}

	ref.UnsafeSet(d, append(slices.Clip(entries), mapEntry[K, V]{key: k, value: v}))
	size := m.size.UnsafeGet(d) + 1
	m.size.UnsafeSet(d, size)

	if capacity := len(m.buckets.UnsafeGet(d)); float64(size) >= float64(capacity)*loadFactor {
		m.resize(d, capacity*2)
	}
}

// resize rehashes every entry into capacity fresh buckets.
func (m *TMap[K, V]) resize(d *stm.Driver, capacity int) {
	contents := make([][]mapEntry[K, V], capacity)
	for _, ref := range m.buckets.UnsafeGet(d) {
		for _, e := range ref.UnsafeGet(d) {
			i := m.index(e.key, capacity)
			contents[i] = append(contents[i], e)
		}
	}

	buckets := make([]*stm.TRef[[]mapEntry[K, V]], capacity)
	for i := range buckets {
		buckets[i] = stm.UnsafeMake(d, contents[i])
	}
	m.buckets.UnsafeSet(d, buckets)
}

func (m *TMap[K, V]) remove(d *stm.Driver, k K) bool {
	ref := m.bucketFor(d, k)
	entries := ref.UnsafeGet(d)
	i := slices.IndexFunc(entries, func(e mapEntry[K, V]) bool { return e.key == k })
	if i < 0 {
		return false
	}
	ref.UnsafeSet(d, slices.Delete(slices.Clone(entries), i, i+1))
	m.size.UnsafeSet(d, m.size.UnsafeGet(d)-1)
	return true
}

// Get looks up k.
func (m *TMap[K, V]) Get(k K) stm.STM[Maybe[V]] {
	return stm.Effect(func(d *stm.Driver) Maybe[V] {
		return m.lookup(d, k)
	})
}

// GetOrElse returns the value of k, or fallback when absent.
func (m *TMap[K, V]) GetOrElse(k K, fallback V) stm.STM[V] {
	return stm.Effect(func(d *stm.Driver) V {
		return m.lookup(d, k).OrElse(fallback)
	})
}

// Has reports whether k is present.
func (m *TMap[K, V]) Has(k K) stm.STM[bool] {
	return stm.Effect(func(d *stm.Driver) bool {
		return m.lookup(d, k).OK
	})
}

// Put stores v under k.
func (m *TMap[K, V]) Put(k K, v V) stm.STM[struct{}] {
	return stm.Effect(func(d *stm.Driver) struct{} {
		m.put(d, k, v)
		return struct{}{}
	})
}

// PutIfAbsent stores v under k unless k is present. Reports whether v was
// stored.
func (m *TMap[K, V]) PutIfAbsent(k K, v V) stm.STM[bool] {
	return stm.Effect(func(d *stm.Driver) bool {
		if m.lookup(d, k).OK {
			return false
		}
		m.put(d, k, v)
		return true
	})
}

// Delete removes k. Reports whether it was present.
func (m *TMap[K, V]) Delete(k K) stm.STM[bool] {
	return stm.Effect(func(d *stm.Driver) bool {
		return m.remove(d, k)
	})
}

// Update replaces the entry for k with f applied to the current lookup.
// Returning an absent Maybe deletes the entry.
func (m *TMap[K, V]) Update(k K, f func(Maybe[V]) Maybe[V]) stm.STM[Maybe[V]] {
	return stm.Effect(func(d *stm.Driver) Maybe[V] {
		next := f(m.lookup(d, k))
		if next.OK {
			m.put(d, k, next.Value)
		} else {
			m.remove(d, k)
		}
		return next
	})
}

// Merge stores v under k, combining it with the current value through f
// when k is present. Returns the stored value.
func (m *TMap[K, V]) Merge(k K, v V, f func(old, v V) V) stm.STM[V] {
	return stm.Effect(func(d *stm.Driver) V {
		if old := m.lookup(d, k); old.OK {
			v = f(old.Value, v)
		}
		m.put(d, k, v)
		return v
	})
}

// Size returns the number of entries.
func (m *TMap[K, V]) Size() stm.STM[int] {
	return m.size.Get()
}

// IsEmpty reports whether the map has no entries.
func (m *TMap[K, V]) IsEmpty() stm.STM[bool] {
	return stm.Map(m.size.Get(), func(n int) bool { return n == 0 })
}

// Keys returns every key, in bucket order.
func (m *TMap[K, V]) Keys() stm.STM[[]K] {
	return FoldMap(m, []K(nil), func(acc []K, k K, _ V) []K { return append(acc, k) })
}

// Values returns every value, in bucket order.
func (m *TMap[K, V]) Values() stm.STM[[]V] {
	return FoldMap(m, []V(nil), func(acc []V, _ K, v V) []V { return append(acc, v) })
}

// ToMap copies the entries into a Go map.
func (m *TMap[K, V]) ToMap() stm.STM[map[K]V] {
	return stm.Suspend(func() stm.STM[map[K]V] {
		return FoldMap(m, make(map[K]V), func(acc map[K]V, k K, v V) map[K]V {
			acc[k] = v
			return acc
		})
	})
}

// Clear removes every entry. The bucket count is kept.
func (m *TMap[K, V]) Clear() stm.STM[struct{}] {
	return stm.Effect(func(d *stm.Driver) struct{} {
		for _, ref := range m.buckets.UnsafeGet(d) {
			if len(ref.UnsafeGet(d)) > 0 {
				ref.UnsafeSet(d, nil)
			}
		}
		m.size.UnsafeSet(d, 0)
		return struct{}{}
	})
}

// FoldMap folds over every entry of m in bucket order.
func FoldMap[K comparable, V, B any](m *TMap[K, V], zero B, f func(B, K, V) B) stm.STM[B] {
	return stm.Effect(func(d *stm.Driver) B {
		acc := zero
		for _, ref := range m.buckets.UnsafeGet(d) {
			for _, e := range ref.UnsafeGet(d) {
				acc = f(acc, e.key, e.value)
			}
		}
		return acc
	})
}
