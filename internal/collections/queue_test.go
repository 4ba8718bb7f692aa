package collections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stm/internal/stm"
)

func TestTQueue_FIFO(t *testing.T) {
	e := newEngine(t)
	q := NewUnboundedQueue[int]()

	run(t, e, q.OfferAll([]int{1, 2, 3}))
	assert.Equal(t, 3, run(t, e, q.Size()))
	assert.Equal(t, 1, run(t, e, q.Peek()))
	assert.Equal(t, 1, run(t, e, q.Take()))
	assert.Equal(t, Some(2), run(t, e, q.Poll()))
	assert.Equal(t, []int{3}, run(t, e, q.TakeAll()))
	assert.True(t, run(t, e, q.IsEmpty()))
	assert.Equal(t, None[int](), run(t, e, q.Poll()))
}

func TestTQueue_TakeRetriesUntilOffer(t *testing.T) {
	e := newEngine(t)
	q := NewBoundedQueue[string](2)

	result := make(chan string, 1)
	go func() {
		v, err := stm.Commit(context.Background(), e, q.Take())
		assert.NoError(t, err)
		result <- v
	}()

	time.Sleep(10 * time.Millisecond)
	run(t, e, q.Offer("hello"))

	select {
	case v := <-result:
		assert.Equal(t, "hello", v)
	case <-time.After(waitFor):
		t.Fatal("Take was not woken by Offer")
	}
}

func TestTQueue_BackPressure(t *testing.T) {
	e := newEngine(t)
	q := NewBoundedQueue[int](2)

	assert.True(t, run(t, e, q.Offer(1)))
	assert.True(t, run(t, e, q.Offer(2)))
	assert.True(t, run(t, e, q.IsFull()))
	assert.True(t, blocks(t, e, q.Offer(3)))

	result := make(chan bool, 1)
	go func() {
		ok, err := stm.Commit(context.Background(), e, q.Offer(3))
		assert.NoError(t, err)
		result <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, run(t, e, q.Take()))

	select {
	case ok := <-result:
		assert.True(t, ok)
	case <-time.After(waitFor):
		t.Fatal("blocked Offer was not woken by Take")
	}
	assert.Equal(t, []int{2, 3}, run(t, e, q.TakeAll()))
}

func TestTQueue_Dropping(t *testing.T) {
	e := newEngine(t)
	q := NewDroppingQueue[int](2)

	assert.False(t, run(t, e, q.OfferAll([]int{1, 2, 3})))
	assert.False(t, run(t, e, q.Offer(4)))
	assert.Equal(t, []int{1, 2}, run(t, e, q.TakeAll()))
}

func TestTQueue_Sliding(t *testing.T) {
	e := newEngine(t)
	q := NewSlidingQueue[int](2)

	assert.True(t, run(t, e, q.OfferAll([]int{1, 2, 3})))
	assert.True(t, run(t, e, q.Offer(4)))
	assert.Equal(t, []int{3, 4}, run(t, e, q.TakeAll()))
	assert.Equal(t, 2, q.Capacity())
}

func TestTQueue_TakeUpTo(t *testing.T) {
	e := newEngine(t)
	q := NewUnboundedQueue[int]()
	run(t, e, q.OfferAll([]int{1, 2, 3}))

	assert.Equal(t, []int{1, 2}, run(t, e, q.TakeUpTo(2)))
	assert.Equal(t, []int{3}, run(t, e, q.TakeUpTo(5)))
	assert.Empty(t, run(t, e, q.TakeUpTo(1)))
}

func TestTQueue_OfferAfterTakeUpToDoesNotClobber(t *testing.T) {
	e := newEngine(t)
	q := NewUnboundedQueue[int]()
	run(t, e, q.OfferAll([]int{1, 2, 3}))

	taken := run(t, e, q.TakeUpTo(2))
	run(t, e, q.Offer(9))
	assert.Equal(t, []int{1, 2}, taken)
	assert.Equal(t, []int{3, 9}, run(t, e, q.TakeAll()))
}

func TestTQueue_MoveBetweenQueuesIsAtomic(t *testing.T) {
	e := newEngine(t)
	from := NewUnboundedQueue[int]()
	to := NewBoundedQueue[int](1)
	run(t, e, from.OfferAll([]int{1, 2}))

	move := stm.FlatMap(from.Take(), to.Offer)
	run(t, e, move)

	// to is full: the second move blocks and must not lose the element.
	require.True(t, blocks(t, e, move))
	assert.Equal(t, []int{2}, run(t, e, from.TakeAll()))
	assert.Equal(t, []int{1}, run(t, e, to.TakeAll()))
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "back-pressure", BackPressure.String())
	assert.Equal(t, "dropping", Dropping.String())
	assert.Equal(t, "sliding", Sliding.String())
}
