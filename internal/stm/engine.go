package stm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine runs transactions.
//
// Cells are not owned by an Engine: commit synchronization is process-wide,
// so transactions committed through different engines still compose. The
// engine carries the host services the commit protocol needs (the wake-up
// scheduler, transaction ids, logging and metrics).
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	scheduler Scheduler
	txnIDs    TxnIDGenerator
	logger    *slog.Logger
	traces    bool
	metrics   *metrics

	registerer prometheus.Registerer

	// Set when New started the default TaskQueue.
	queue *TaskQueue
	stop  context.CancelFunc
	done  chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithScheduler sets the scheduler woken transactions run on.
//
// Default: a TaskQueue drained by a goroutine owned by the engine.
func WithScheduler(s Scheduler) EngineOption {
	return func(e *Engine) {
		e.scheduler = s
	}
}

// WithTxnIDGenerator sets the generator for suspended transaction ids.
//
// Default: UUIDv7Generator. Tests use NewSequentialGenerator for stable ids.
func WithTxnIDGenerator(g TxnIDGenerator) EngineOption {
	return func(e *Engine) {
		e.txnIDs = g
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithStackTraces enables stack capture for defects.
func WithStackTraces(enabled bool) EngineOption {
	return func(e *Engine) {
		e.traces = enabled
	}
}

// WithRegisterer registers the engine's collectors with r.
func WithRegisterer(r prometheus.Registerer) EngineOption {
	return func(e *Engine) {
		e.registerer = r
	}
}

// New creates an Engine. Call Close when done to stop the default
// scheduler.
func New(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		txnIDs:  UUIDv7Generator{},
		logger:  slog.Default(),
		metrics: newMetrics(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.registerer != nil {
		if err := e.metrics.register(e.registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	if e.scheduler == nil {
		ctx, cancel := context.WithCancel(context.Background())
		e.queue = NewTaskQueue()
		e.scheduler = e.queue
		e.stop = cancel
		e.done = make(chan struct{})
		go func() {
			defer close(e.done)
			_ = e.queue.Run(ctx)
		}()
	}

	e.logger.Debug("stm engine created",
		"traces", e.traces,
		"default_scheduler", e.queue != nil,
	)
	return e, nil
}

// MustNew is New for setup code where an error is a programming mistake.
func MustNew(opts ...EngineOption) *Engine {
	e, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Close stops the default scheduler after the tasks already queued have
// run. Transactions still suspended will only complete through interruption
// once the scheduler is gone.
func (e *Engine) Close() {
	if e.queue == nil {
		return
	}
	e.queue.Close()
	<-e.done
	e.stop()
}

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger {
	return e.logger
}
