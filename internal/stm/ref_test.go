package stm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTRef_ReadYourOwnWrites(t *testing.T) {
	e := newTestEngine(t)
	r := MakeCommitted(1)

	p := ZipRight(r.Set(5), r.Get())
	assert.Equal(t, 5, commit(t, e, p))
	assert.Equal(t, 5, r.Committed())
}

func TestTRef_WritesInvisibleBeforeCommit(t *testing.T) {
	e := newTestEngine(t)
	r := MakeCommitted(1)

	var during int
	p := ZipRight(r.Set(5), Sync(func() int {
		during = r.Committed()
		return during
	}))
	commit(t, e, p)
	assert.Equal(t, 1, during)
	assert.Equal(t, 5, r.Committed())
}

func TestTRef_FailedTransactionDiscardsWrites(t *testing.T) {
	e := newTestEngine(t)
	r := MakeCommitted(1)

	cause := causeOf(t, e, ZipRight(r.Set(5), Fail[int](errBoom)))
	assert.Equal(t, CauseFail, cause.Kind)
	assert.Equal(t, 1, r.Committed())

	cause = causeOf(t, e, ZipRight(r.Set(6), Die[int]("x")))
	assert.Equal(t, CauseDie, cause.Kind)
	assert.Equal(t, 1, r.Committed())
}

func TestTRef_Operations(t *testing.T) {
	e := newTestEngine(t)
	r := MakeCommitted(10)

	commit(t, e, r.Update(func(n int) int { return n + 1 }))
	assert.Equal(t, 11, r.Committed())

	assert.Equal(t, 12, commit(t, e, r.UpdateAndGet(func(n int) int { return n + 1 })))
	assert.Equal(t, 12, commit(t, e, r.GetAndUpdate(func(n int) int { return n * 2 })))
	assert.Equal(t, 24, commit(t, e, r.GetAndSet(3)))
	assert.Equal(t, 3, r.Committed())

	label := commit(t, e, Modify(r, func(n int) (string, int) {
		if n > 2 {
			return "big", 0
		}
		return "small", n
	}))
	assert.Equal(t, "big", label)
	assert.Equal(t, 0, r.Committed())
}

func TestTRef_MakeInsideTransaction(t *testing.T) {
	e := newTestEngine(t)

	p := FlatMap(Make("a"), func(r *TRef[string]) STM[*TRef[string]] {
		return As(r.Set("b"), r)
	})
	r := commit(t, e, p)
	require.NotNil(t, r)
	assert.Equal(t, "b", r.Committed())
	assert.Equal(t, "b", commit(t, e, r.Get()))
}

func TestTRef_MakeCommitsUnchangedInitial(t *testing.T) {
	e := newTestEngine(t)

	r := commit(t, e, Make(7))
	assert.Equal(t, 7, r.Committed())
	assert.NotZero(t, r.c.current.Load().stamp, "allocation is installed by the commit")
}

func TestTRef_ZeroValueOfNil(t *testing.T) {
	e := newTestEngine(t)
	var initial []int
	r := MakeCommitted(initial)

	assert.Nil(t, commit(t, e, r.Get()))
	commit(t, e, r.Update(func(s []int) []int { return append(s, 1) }))
	assert.Equal(t, []int{1}, r.Committed())
}

func TestTRef_IDsUnique(t *testing.T) {
	a := MakeCommitted(0)
	b := MakeCommitted(0)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestTRef_Atomicity(t *testing.T) {
	e := newTestEngine(t)
	a := MakeCommitted(100)
	b := MakeCommitted(0)

	move := ZipRight(a.Update(func(n int) int { return n - 1 }), b.Update(func(n int) int { return n + 1 }))
	sum := ZipWith(a.Get(), b.Get(), func(x, y int) int { return x + y })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			_, _ = Commit(t.Context(), e, move)
		}
	}()

	for range 200 {
		assert.Equal(t, 100, commit(t, e, sum))
	}
	<-done
	assert.Equal(t, 0, a.Committed())
	assert.Equal(t, 100, b.Committed())
}
