package collections

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stm/internal/stm"
	"github.com/roach88/stm/internal/testutil"
)

func TestTQueue_WakeRunsOnEngineScheduler(t *testing.T) {
	sched := testutil.NewManualScheduler()
	e, err := stm.New(
		stm.WithLogger(slog.New(slog.DiscardHandler)),
		stm.WithScheduler(sched),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	q := NewUnboundedQueue[int]()
	result := make(chan int, 1)
	go func() {
		v, err := stm.Commit(context.Background(), e, q.Take())
		assert.NoError(t, err)
		result <- v
	}()
	time.Sleep(20 * time.Millisecond)

	run(t, e, q.Offer(42))
	require.Equal(t, 1, sched.Pending(), "the parked Take is scheduled, not run")

	select {
	case <-result:
		t.Fatal("Take completed before its wake-up task ran")
	case <-time.After(20 * time.Millisecond):
	}

	assert.Equal(t, 1, sched.RunPending())
	select {
	case v := <-result:
		assert.Equal(t, 42, v)
	case <-time.After(waitFor):
		t.Fatal("Take was not completed by its wake-up task")
	}
}
