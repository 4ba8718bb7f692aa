package collections

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/stm/internal/stm"
)

type job struct {
	name     string
	priority int
}

func byPriority(a, b job) bool { return a.priority < b.priority }

func TestTPriorityQueue_Order(t *testing.T) {
	e := newEngine(t)
	q := NewPriorityQueue(byPriority)

	run(t, e, q.OfferAll([]job{{"c", 3}, {"a", 1}, {"b1", 2}}))
	run(t, e, q.Offer(job{"b2", 2}))
	assert.Equal(t, 4, run(t, e, q.Size()))

	assert.Equal(t, job{"a", 1}, run(t, e, q.Peek()))
	assert.Equal(t, job{"a", 1}, run(t, e, q.Take()))
	assert.Equal(t, Some(job{"b1", 2}), run(t, e, q.Poll()), "equal priorities keep offer order")
	assert.Equal(t, []job{{"b2", 2}}, run(t, e, q.TakeUpTo(1)))
	assert.Equal(t, []job{{"c", 3}}, run(t, e, q.TakeAll()))
	assert.Equal(t, None[job](), run(t, e, q.Poll()))
}

func TestTPriorityQueue_TakeRetriesWhileEmpty(t *testing.T) {
	e := newEngine(t)
	q := NewPriorityQueue(func(a, b int) bool { return a < b })

	assert.True(t, blocks(t, e, q.Take()))

	result := make(chan int, 1)
	go func() {
		v, err := stm.Commit(context.Background(), e, q.Take())
		assert.NoError(t, err)
		result <- v
	}()
	time.Sleep(10 * time.Millisecond)
	run(t, e, q.OfferAll([]int{5, 2}))

	select {
	case v := <-result:
		assert.Equal(t, 2, v)
	case <-time.After(waitFor):
		t.Fatal("Take was not woken")
	}
}
