package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/stm/internal/stm"
	"github.com/roach88/stm/internal/store"
	"github.com/roach88/stm/internal/testutil"
)

// RunIDGenerator names runs in the trace store.
// Implemented by UUIDRunIDs (default) and testutil.FixedRunIDGenerator.
type RunIDGenerator interface {
	Generate() string
}

// UUIDRunIDs generates time-sortable UUIDv7 run ids.
type UUIDRunIDs struct{}

// Generate creates a new UUIDv7 string.
func (UUIDRunIDs) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Option configures a run.
type Option func(*Harness)

// WithStore records the run in st instead of a fresh in-memory store.
// The caller keeps ownership of st.
func WithStore(st *store.Store) Option {
	return func(h *Harness) {
		h.store = st
	}
}

// WithRunIDGenerator overrides how the run is named.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(h *Harness) {
		h.runIDs = g
	}
}

// WithLogger sets the logger for the harness and its engine.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Harness executes one scenario against a dedicated engine.
type Harness struct {
	store    *store.Store
	engine   *stm.Engine
	registry *prometheus.Registry
	seq      *testutil.Sequence
	runIDs   RunIDGenerator
	logger   *slog.Logger
	cells    cellSet
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open the trace store (fresh in-memory database unless WithStore)
//  2. Seed the cells and start every transaction instance concurrently
//  3. Interrupt instances still suspended after the settle window
//  4. Record outcomes and final cell values in the store
//  5. Evaluate assertions against the store
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		seq:    testutil.NewSequence(),
		runIDs: UUIDRunIDs{},
		logger: slog.New(slog.DiscardHandler),
	}
	if scenario.RunID != "" {
		h.runIDs = testutil.NewFixedRunIDGenerator(scenario.RunID)
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.store == nil {
		st, err := store.Open(":memory:")
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory store: %w", err)
		}
		defer st.Close()
		h.store = st
	}

	h.registry = prometheus.NewRegistry()
	eng, err := stm.New(
		stm.WithLogger(h.logger),
		stm.WithRegisterer(h.registry),
		stm.WithTxnIDGenerator(stm.NewSequentialGenerator()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	defer eng.Close()
	h.engine = eng

	runID := h.runIDs.Generate()
	if err := h.store.WriteRun(ctx, store.Run{ID: runID, Scenario: scenario.Name, Seq: h.seq.Next()}); err != nil {
		return nil, err
	}

	h.cells = make(cellSet, len(scenario.Cells))
	for name, v := range scenario.Cells {
		h.cells[name] = stm.MakeCommitted(v)
	}

	h.logger.Info("scenario started",
		"scenario", scenario.Name,
		"run", runID,
		"transactions", len(scenario.Transactions),
	)

	if err := h.execute(ctx, scenario, runID); err != nil {
		return nil, fmt.Errorf("failed to execute transactions: %w", err)
	}

	result, err := h.collect(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect run: %w", err)
	}

	actx := &AssertionContext{
		Store: h.store,
		Ctx:   ctx,
		RunID: runID,
	}
	for _, errMsg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"run", runID,
		"pass", result.Pass,
	)
	return result, nil
}

// execute starts every instance and waits until each has an outcome.
func (h *Harness) execute(ctx context.Context, scenario *Scenario, runID string) error {
	settleCtx, cancel := context.WithTimeout(ctx, scenario.settle())
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, tx := range scenario.Transactions {
		program := buildProgram(h.cells, tx)
		for i := range tx.instances() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fiberCtx := stm.WithFiber(settleCtx, stm.NewFiberID())
				exit := stm.CommitExit(fiberCtx, h.engine, program)

				// The settle context may be gone; the record must still land.
				if err := h.record(ctx, runID, tx.Label, i, exit); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()
	return firstErr
}

// record writes one instance outcome to the store.
func (h *Harness) record(ctx context.Context, runID, label string, instance int, exit stm.Exit[int64]) error {
	o := store.Outcome{
		RunID:    runID,
		Seq:      h.seq.Next(),
		Label:    label,
		Instance: instance,
		Kind:     outcomeOf(exit.Cause),
		Value:    exit.Value,
	}
	if exit.Cause != nil {
		o.Error = exit.Cause.Error()
	}

	h.logger.Debug("transaction finished",
		"label", label,
		"instance", instance,
		"outcome", o.Kind,
	)
	return h.store.WriteOutcome(ctx, o)
}

// collect snapshots the final cells, reads the run back from the store and
// gathers the engine counters.
func (h *Harness) collect(ctx context.Context, runID string) (*Result, error) {
	// Gathered before the final read so that read is not counted.
	metrics, err := gatherMetrics(h.registry)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(h.cells))
	for name := range h.cells {
		names = append(names, name)
	}
	sort.Strings(names)

	values, err := stm.Commit(ctx, h.engine, stm.ForEach(names, func(name string) stm.STM[int64] {
		return h.cells[name].Get()
	}))
	if err != nil {
		return nil, fmt.Errorf("read final cells: %w", err)
	}
	final := make(map[string]int64, len(names))
	for i, name := range names {
		final[name] = values[i]
	}
	if err := h.store.WriteCells(ctx, runID, final); err != nil {
		return nil, err
	}

	result := NewResult(runID)
	result.Metrics = metrics

	outcomes, err := h.store.ReadOutcomes(ctx, runID)
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		result.Outcomes = append(result.Outcomes, OutcomeRecord{
			Seq:      o.Seq,
			Label:    o.Label,
			Instance: o.Instance,
			Outcome:  o.Kind,
			Value:    o.Value,
			Error:    o.Error,
		})
	}

	if result.Counts, err = h.store.OutcomeCounts(ctx, runID); err != nil {
		return nil, err
	}
	if result.Cells, err = h.store.ReadCells(ctx, runID); err != nil {
		return nil, err
	}
	return result, nil
}

// outcomeOf maps a commit cause to an outcome kind.
func outcomeOf(c *stm.Cause) string {
	if c == nil {
		return store.OutcomeCommitted
	}
	switch c.Kind {
	case stm.CauseFail:
		return store.OutcomeFailed
	case stm.CauseDie:
		return store.OutcomeDied
	default:
		return store.OutcomeInterrupted
	}
}

// gatherMetrics flattens the registry's counters.
func gatherMetrics(reg *prometheus.Registry) (map[string]float64, error) {
	families, err := reg.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			if labels := m.GetLabel(); len(labels) > 0 {
				pairs := make([]string, 0, len(labels))
				for _, l := range labels {
					pairs = append(pairs, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
				}
				slices.Sort(pairs)
				name += "{" + strings.Join(pairs, ",") + "}"
			}
			out[name] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}
