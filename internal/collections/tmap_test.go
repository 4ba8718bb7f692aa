package collections

import (
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stm/internal/stm"
)

func TestTMap_PutGetDelete(t *testing.T) {
	e := newEngine(t)
	m := NewMap[string, int](4)

	run(t, e, m.Put("a", 1))
	run(t, e, m.Put("b", 2))
	run(t, e, m.Put("a", 3))

	assert.Equal(t, Some(3), run(t, e, m.Get("a")))
	assert.Equal(t, None[int](), run(t, e, m.Get("zz")))
	assert.Equal(t, 2, run(t, e, m.Size()))
	assert.True(t, run(t, e, m.Has("b")))
	assert.Equal(t, 9, run(t, e, m.GetOrElse("zz", 9)))

	assert.True(t, run(t, e, m.Delete("a")))
	assert.False(t, run(t, e, m.Delete("a")))
	assert.Equal(t, 1, run(t, e, m.Size()))
	assert.False(t, run(t, e, m.Has("a")))
}

func TestTMap_ResizeKeepsEveryKey(t *testing.T) {
	e := newEngine(t)
	m := NewMap[int, string](2)

	const n = 1000
	for i := range n {
		run(t, e, m.Put(i, fmt.Sprint(i)))
	}

	assert.Equal(t, n, run(t, e, m.Size()))
	for i := range n {
		require.Equal(t, Some(fmt.Sprint(i)), run(t, e, m.Get(i)), "key %d", i)
	}
	assert.Greater(t, len(m.buckets.Committed()), n, "buckets grew past the entry count")

	keys := run(t, e, m.Keys())
	slices.Sort(keys)
	assert.Len(t, keys, n)
	assert.Equal(t, 0, keys[0])
	assert.Equal(t, n-1, keys[n-1])
}

func TestTMap_ResizeRolledBackWithTransaction(t *testing.T) {
	e := newEngine(t)
	m := NewMap[int, int](2)
	before := len(m.buckets.Committed())

	p := stm.ZipRight(stm.ForEachDiscard([]int{1, 2, 3, 4}, func(k int) stm.STM[struct{}] {
		return m.Put(k, k)
	}), stm.Fail[struct{}](assert.AnError))
	_, err := stm.Commit(t.Context(), e, p)
	require.Error(t, err)

	assert.Equal(t, before, len(m.buckets.Committed()))
	assert.Equal(t, 0, run(t, e, m.Size()))
}

func TestTMap_ConcurrentPuts(t *testing.T) {
	e := newEngine(t)
	m := NewMap[int, int](2)

	const workers, perWorker = 4, 100
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				k := w*perWorker + i
				_, err := stm.Commit(t.Context(), e, m.Put(k, k))
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	got := run(t, e, m.ToMap())
	assert.Len(t, got, workers*perWorker)
	for k, v := range got {
		assert.Equal(t, k, v)
	}
}

func TestTMap_UpdateMergeClear(t *testing.T) {
	e := newEngine(t)
	m := NewMap[string, int](0)

	inc := func(cur Maybe[int]) Maybe[int] { return Some(cur.OrElse(0) + 1) }
	run(t, e, m.Update("hits", inc))
	run(t, e, m.Update("hits", inc))
	assert.Equal(t, Some(2), run(t, e, m.Get("hits")))

	run(t, e, m.Update("hits", func(Maybe[int]) Maybe[int] { return None[int]() }))
	assert.False(t, run(t, e, m.Has("hits")))

	sum := func(old, v int) int { return old + v }
	assert.Equal(t, 5, run(t, e, m.Merge("x", 5, sum)))
	assert.Equal(t, 8, run(t, e, m.Merge("x", 3, sum)))

	assert.True(t, run(t, e, m.PutIfAbsent("y", 1)))
	assert.False(t, run(t, e, m.PutIfAbsent("y", 2)))

	values := run(t, e, m.Values())
	slices.Sort(values)
	assert.Equal(t, []int{1, 8}, values)

	run(t, e, m.Clear())
	assert.True(t, run(t, e, m.IsEmpty()))
	assert.Empty(t, run(t, e, m.ToMap()))
}

func TestTMap_MakeMap(t *testing.T) {
	e := newEngine(t)

	entries := make(map[int]int)
	for i := range 40 {
		entries[i] = i * i
	}
	m := run(t, e, MakeMap(entries))

	assert.Equal(t, 40, run(t, e, m.Size()))
	assert.Equal(t, entries, run(t, e, m.ToMap()))
	assert.Equal(t, 40*39/2, run(t, e, FoldMap(m, 0, func(acc, k, _ int) int { return acc + k })))
}

func TestTSet(t *testing.T) {
	e := newEngine(t)
	s := NewSet[string]()

	assert.True(t, run(t, e, s.Add("a")))
	assert.False(t, run(t, e, s.Add("a")))
	run(t, e, s.Add("b"))
	assert.Equal(t, 2, run(t, e, s.Size()))
	assert.True(t, run(t, e, s.Has("b")))

	other := run(t, e, MakeSet("b", "c", "d"))
	run(t, e, s.Union(other))
	members := run(t, e, s.ToSlice())
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, members)

	run(t, e, s.Retain(func(v string) bool { return v != "c" }))
	assert.ElementsMatch(t, []string{"a", "b", "d"}, run(t, e, s.ToSlice()))

	assert.True(t, run(t, e, s.Remove("a")))
	assert.False(t, run(t, e, s.Has("a")))
}
