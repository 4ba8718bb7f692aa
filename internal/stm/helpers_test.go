package stm

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// newTestEngine creates an engine with its own registry, a silent logger
// and sequential transaction ids.
func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()

	base := []EngineOption{
		WithLogger(slog.New(slog.DiscardHandler)),
		WithTxnIDGenerator(NewSequentialGenerator()),
		WithRegisterer(prometheus.NewRegistry()),
	}
	e, err := New(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

// commit runs p and fails the test on any non-success outcome.
func commit[A any](t *testing.T, e *Engine, p STM[A]) A {
	t.Helper()
	v, err := Commit(t.Context(), e, p)
	require.NoError(t, err)
	return v
}

// causeOf runs p and returns its cause, failing the test on success.
func causeOf[A any](t *testing.T, e *Engine, p STM[A]) *Cause {
	t.Helper()
	exit := CommitExit(t.Context(), e, p)
	require.False(t, exit.IsSuccess(), "expected transaction not to succeed")
	return exit.Cause
}

// recoverEngineDefect runs f and returns the ErrEngineDefect it panicked with.
func recoverEngineDefect(f func()) (err error) {
	defer func() {
		r := recover()
		if e, ok := r.(error); ok && errors.Is(e, ErrEngineDefect) {
			err = e
		}
	}()
	f()
	return nil
}
