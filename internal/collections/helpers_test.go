package collections

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/stm/internal/stm"
)

const waitFor = 2 * time.Second

func newEngine(t *testing.T) *stm.Engine {
	t.Helper()
	e, err := stm.New(
		stm.WithLogger(slog.New(slog.DiscardHandler)),
		stm.WithTxnIDGenerator(stm.NewSequentialGenerator()),
	)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func run[A any](t *testing.T, e *stm.Engine, p stm.STM[A]) A {
	t.Helper()
	v, err := stm.Commit(t.Context(), e, p)
	require.NoError(t, err)
	return v
}

// blocks commits p in the background and reports whether it is still
// waiting after a short grace period. The transaction is interrupted
// before blocks returns.
func blocks[A any](t *testing.T, e *stm.Engine, p stm.STM[A]) bool {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := stm.Commit(ctx, e, p)
		done <- err
	}()

	select {
	case <-done:
		return false
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	err := <-done
	require.True(t, stm.IsInterrupted(err), "blocked transaction should end interrupted, got %v", err)
	return true
}
