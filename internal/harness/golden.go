package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot captures the deterministic part of a run: final cells and
// outcome counts. Outcome order, errors and metrics vary between runs and
// are left out.
type Snapshot struct {
	ScenarioName string
	Cells        map[string]int64
	Counts       map[string]map[string]int
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenarioName string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: scenarioName,
		Cells:        result.Cells,
		Counts:       result.Counts,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON.
func (s Snapshot) toCanonicalMap() map[string]any {
	counts := make(map[string]any, len(s.Counts))
	for label, byKind := range s.Counts {
		counts[label] = byKind
	}
	cells := s.Cells
	if cells == nil {
		cells = map[string]int64{}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"cells":         cells,
		"outcomes":      counts,
	}
}

// Marshal returns the snapshot's canonical JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's snapshot against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
