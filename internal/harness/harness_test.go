package harness

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stm/internal/store"
	"github.com/roach88/stm/internal/testutil"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Transfer(t *testing.T) {
	s := loadTestScenario(t, "transfer")

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "run-transfer", result.RunID)
	assert.Equal(t, map[string]int64{"a": 0, "b": 100}, result.Cells)
	assert.Equal(t, 2, result.Count("transfer", store.OutcomeCommitted))
	assert.Equal(t, 1, result.Count("transfer", store.OutcomeInterrupted))

	require.Len(t, result.Outcomes, 3)
	for i, o := range result.Outcomes {
		assert.Equal(t, "transfer", o.Label)
		if i > 0 {
			assert.Greater(t, o.Seq, result.Outcomes[i-1].Seq, "outcomes are in completion order")
		}
		if o.Outcome == store.OutcomeCommitted {
			assert.GreaterOrEqual(t, o.Value, int64(50), "require returns the balance it saw")
		}
	}

	assert.GreaterOrEqual(t, result.Metrics["stm_attempts_total"], float64(3))
	assert.Equal(t, float64(2), result.Metrics[`stm_transactions_total{outcome="committed"}`])
	assert.Equal(t, float64(1), result.Metrics[`stm_transactions_total{outcome="interrupted"}`])
}

func TestRun_FailedAssertion(t *testing.T) {
	s := loadTestScenario(t, "counter")
	wrong := int64(7)
	s.Assertions = append(s.Assertions, Assertion{Type: AssertFinalState, Cell: "n", Expect: &wrong})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Assertion failed: final_state")
	assert.Contains(t, result.Errors[0], "cell n = 20")
}

func TestRun_FailureOutcomesCarryErrors(t *testing.T) {
	s := loadTestScenario(t, "failures")

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	byLabel := make(map[string]OutcomeRecord)
	for _, o := range result.Outcomes {
		byLabel[o.Label] = o
	}
	assert.Contains(t, byLabel["boom"].Error, "boom: out of budget")
	assert.Contains(t, byLabel["crash"].Error, "crash: died")
	assert.Empty(t, byLabel["ok"].Error)
}

func TestRun_WithExternalStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	s := loadTestScenario(t, "counter")
	ctx := context.Background()
	_, err = Run(ctx, s,
		WithStore(st),
		WithRunIDGenerator(testutil.NewFixedRunIDGenerator("first")),
		WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	_, err = Run(ctx, s, WithStore(st), WithRunIDGenerator(testutil.NewFixedRunIDGenerator("second")))
	require.NoError(t, err)

	// Both runs stay queryable after the harness returns.
	for _, runID := range []string{"first", "second"} {
		n, err := st.CountOutcomes(ctx, runID, "increment", store.OutcomeCommitted)
		require.NoError(t, err)
		assert.Equal(t, 20, n)

		v, err := st.ReadCell(ctx, runID, "n")
		require.NoError(t, err)
		assert.Equal(t, int64(20), v)
	}
}

func TestRun_DefaultRunIDIsUUID(t *testing.T) {
	s := loadTestScenario(t, "counter")

	r1, err := Run(context.Background(), s)
	require.NoError(t, err)
	r2, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Len(t, r1.RunID, 36)
	assert.NotEqual(t, r1.RunID, r2.RunID)
}

func TestRun_CancelledContextInterruptsBlockedInstances(t *testing.T) {
	atLeast := int64(1)
	s := &Scenario{
		Name:        "blocked",
		Description: "waits forever",
		Cells:       map[string]int64{"x": 0},
		Transactions: []Transaction{{
			Label:     "wait",
			Instances: 2,
			Steps:     []Step{{Op: OpRequire, Cell: "x", Min: &atLeast}},
		}},
		Settle: 20 * time.Millisecond,
		Assertions: []Assertion{{
			Type: AssertOutcomeCount, Label: "wait", Outcome: store.OutcomeInterrupted, Count: intPtr(2),
		}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string]int64{"x": 0}, result.Cells)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, store.OutcomeCommitted, outcomeOf(nil))
}

func intPtr(n int) *int { return &n }
