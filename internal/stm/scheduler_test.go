package stm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskQueue_FIFO(t *testing.T) {
	q := NewTaskQueue()

	var order []int
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(func() { order = append(order, i) }))
	}
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, 3, q.Drain())
	assert.Equal(t, []int{1, 2, 3}, order)
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_DrainRunsNestedTasks(t *testing.T) {
	q := NewTaskQueue()

	ran := 0
	q.ScheduleTask(func() {
		ran++
		q.ScheduleTask(func() { ran++ })
	})

	assert.Equal(t, 2, q.Drain())
	assert.Equal(t, 2, ran)
}

func TestTaskQueue_TryDequeue_Empty(t *testing.T) {
	q := NewTaskQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestTaskQueue_Enqueue_AfterClose(t *testing.T) {
	q := NewTaskQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(func() {}), "enqueue after close should return false")
	assert.Equal(t, 0, q.Len())
}

func TestTaskQueue_RunExecutesTasks(t *testing.T) {
	q := NewTaskQueue()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- q.Run(ctx) }()

	done := make(chan struct{})
	q.ScheduleTask(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancellation")
	}
}

func TestTaskQueue_RunDrainsBeforeExitOnClose(t *testing.T) {
	q := NewTaskQueue()

	var mu sync.Mutex
	ran := 0
	for range 5 {
		q.Enqueue(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	q.Close()

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, 5, ran)
}

func TestTaskQueue_ThreadSafe(t *testing.T) {
	q := NewTaskQueue()

	const producers = 10
	const tasksPerProducer = 100

	var mu sync.Mutex
	ran := 0

	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range tasksPerProducer {
				q.ScheduleTask(func() {
					mu.Lock()
					ran++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	q.Close()

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, producers*tasksPerProducer, ran)
}

func TestSchedulerFunc(t *testing.T) {
	var got []string
	s := SchedulerFunc(func(task func()) {
		got = append(got, "scheduled")
		task()
	})

	s.ScheduleTask(func() { got = append(got, "ran") })
	assert.Equal(t, []string{"scheduled", "ran"}, got)
}

func TestEngine_ExecTodosInTxnIDOrder(t *testing.T) {
	q := NewTaskQueue()
	e := newTestEngine(t, WithScheduler(q))

	gen := NewSequentialGenerator()
	first, second, third := gen.Generate(), gen.Generate(), gen.Generate()

	var order []TxnID
	e.execTodos(map[TxnID]func(){
		third:  func() { order = append(order, third) },
		first:  func() { order = append(order, first) },
		second: func() { order = append(order, second) },
	})
	q.Drain()

	assert.Equal(t, []TxnID{first, second, third}, order)
}
