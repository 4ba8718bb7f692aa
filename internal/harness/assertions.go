package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stm/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes enough context to debug the failure without the store.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides the store and run that assertions query.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// assertFinalState checks a single cell's final value.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	got, err := actx.Store.ReadCell(actx.Ctx, actx.RunID, a.Cell)
	if errors.Is(err, store.ErrCellNotFound) {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("cell %s = %d", a.Cell, *a.Expect),
			Actual:   "cell not recorded",
		}
	}
	if err != nil {
		return err
	}

	if got != *a.Expect {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("cell %s = %d", a.Cell, *a.Expect),
			Actual:   fmt.Sprintf("cell %s = %d", a.Cell, got),
		}
	}
	return nil
}

// assertOutcomeCount checks how many instances of a label ended a given way.
func assertOutcomeCount(actx *AssertionContext, a Assertion) error {
	got, err := actx.Store.CountOutcomes(actx.Ctx, actx.RunID, a.Label, a.Outcome)
	if err != nil {
		return err
	}

	if got != *a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d %s instance(s) of %s", *a.Count, a.Outcome, a.Label),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

// assertTotal checks the sum of several cells, e.g. money conservation.
func assertTotal(actx *AssertionContext, a Assertion) error {
	cells, err := actx.Store.ReadCells(actx.Ctx, actx.RunID)
	if err != nil {
		return err
	}

	var sum int64
	for _, name := range a.Cells {
		v, ok := cells[name]
		if !ok {
			return &AssertionError{
				Type:     AssertTotal,
				Expected: fmt.Sprintf("cells %v recorded", a.Cells),
				Actual:   fmt.Sprintf("cell %s not recorded", name),
			}
		}
		sum += v
	}

	if sum != *a.Expect {
		return &AssertionError{
			Type:     AssertTotal,
			Expected: fmt.Sprintf("sum of %v = %d", a.Cells, *a.Expect),
			Actual:   fmt.Sprintf("sum = %d", sum),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the recorded run.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch {
		case actx == nil || actx.Store == nil:
			err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
		case assertion.Type == AssertFinalState && assertion.Expect != nil:
			err = assertFinalState(actx, assertion)
		case assertion.Type == AssertOutcomeCount && assertion.Count != nil:
			err = assertOutcomeCount(actx, assertion)
		case assertion.Type == AssertTotal && assertion.Expect != nil:
			err = assertTotal(actx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: invalid %q assertion", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}
