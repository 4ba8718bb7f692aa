package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stm/internal/store"
)

// DefaultSettle is how long a run waits for blocked transactions before
// interrupting them, when the scenario does not say.
const DefaultSettle = 200 * time.Millisecond

// Scenario defines a concurrent transaction workload.
// Scenarios seed a set of integer cells, run every transaction instance
// concurrently against one engine, and assert on the outcomes and the final
// cell values.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is an optional fixed run id for deterministic tests.
	// If empty, each run gets a fresh UUIDv7.
	RunID string `yaml:"run_id,omitempty"`

	// Cells seeds the transactional cells by name.
	Cells map[string]int64 `yaml:"cells"`

	// Transactions are started concurrently, Instances copies each.
	Transactions []Transaction `yaml:"transactions"`

	// Settle bounds how long blocked instances may wait. Instances still
	// suspended when it elapses end interrupted.
	Settle time.Duration `yaml:"settle,omitempty"`

	// Assertions validate outcomes and final state.
	// Supported types: final_state, outcome_count, total
	Assertions []Assertion `yaml:"assertions"`
}

// Transaction is one labelled transaction body.
type Transaction struct {
	// Label names the transaction in outcomes and assertions.
	Label string `yaml:"label"`

	// Instances is how many copies run concurrently. Zero means one.
	Instances int `yaml:"instances,omitempty"`

	// Steps run in order inside one atomic transaction.
	Steps []Step `yaml:"steps"`

	// OrElse runs instead of Steps when Steps fail or retry.
	OrElse []Step `yaml:"or_else,omitempty"`

	// OrTry runs instead of Steps when Steps retry. Failures propagate.
	OrTry []Step `yaml:"or_try,omitempty"`
}

// Step is a single operation inside a transaction.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Cell names the cell the step reads or writes.
	Cell string `yaml:"cell,omitempty"`

	// Delta is added to the cell (add).
	Delta int64 `yaml:"delta,omitempty"`

	// Value is stored in the cell (set).
	Value int64 `yaml:"value,omitempty"`

	// Min is the lower bound for require.
	Min *int64 `yaml:"min,omitempty"`

	// Max is the upper bound for require_max.
	Max *int64 `yaml:"max,omitempty"`

	// Message is the error or defect text (fail, die).
	Message string `yaml:"message,omitempty"`
}

// Step operations.
const (
	OpRead       = "read"
	OpRequire    = "require"
	OpRequireMax = "require_max"
	OpAdd        = "add"
	OpSet        = "set"
	OpFail       = "fail"
	OpDie        = "die"
	OpRetry      = "retry"
)

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "final_state": Cell holds Expect after the run
	// - "outcome_count": Count instances of Label ended with Outcome
	// - "total": The sum of Cells equals Expect
	Type string `yaml:"type"`

	// Cell is the cell name (used by final_state).
	Cell string `yaml:"cell,omitempty"`

	// Cells lists the cells to sum (used by total).
	Cells []string `yaml:"cells,omitempty"`

	// Label is the transaction label (used by outcome_count).
	Label string `yaml:"label,omitempty"`

	// Outcome is committed, failed, died or interrupted (used by outcome_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of instances (used by outcome_count).
	Count *int `yaml:"count,omitempty"`

	// Expect is the expected value (used by final_state and total).
	Expect *int64 `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalState   = "final_state"
	AssertOutcomeCount = "outcome_count"
	AssertTotal        = "total"
)

// instances returns the number of concurrent copies of t.
func (t Transaction) instances() int {
	if t.Instances <= 0 {
		return 1
	}
	return t.Instances
}

// settle returns the scenario's settle window.
func (s *Scenario) settle() time.Duration {
	if s.Settle <= 0 {
		return DefaultSettle
	}
	return s.Settle
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, fails the CUE schema,
// contains unknown fields (typos), or is semantically invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	// Strict decoding catches fields the schema allows but Go would drop.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks references and per-type required fields.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Cells) == 0 {
		return fmt.Errorf("cells map is required and must be non-empty")
	}

	if len(s.Transactions) == 0 {
		return fmt.Errorf("transactions list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Settle < 0 {
		return fmt.Errorf("settle must be non-negative")
	}

	labels := make(map[string]bool, len(s.Transactions))
	for i, tx := range s.Transactions {
		if tx.Label == "" {
			return fmt.Errorf("transactions[%d]: label is required", i)
		}
		if labels[tx.Label] {
			return fmt.Errorf("transactions[%d]: duplicate label %q", i, tx.Label)
		}
		labels[tx.Label] = true

		if tx.Instances < 0 {
			return fmt.Errorf("transactions[%d]: instances must be non-negative", i)
		}
		if len(tx.Steps) == 0 {
			return fmt.Errorf("transactions[%d]: steps list is required and must be non-empty", i)
		}
		if len(tx.OrElse) > 0 && len(tx.OrTry) > 0 {
			return fmt.Errorf("transactions[%d]: or_else and or_try are mutually exclusive", i)
		}

		for field, steps := range map[string][]Step{"steps": tx.Steps, "or_else": tx.OrElse, "or_try": tx.OrTry} {
			for j, step := range steps {
				if err := validateStep(s, &step); err != nil {
					return fmt.Errorf("transactions[%d].%s[%d]: %w", i, field, j, err)
				}
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(s, labels, &assertion); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

// validateStep validates a single step based on its op.
func validateStep(s *Scenario, step *Step) error {
	switch step.Op {
	case OpRead, OpAdd, OpSet:
	case OpRequire:
		if step.Min == nil {
			return fmt.Errorf("min is required for require")
		}
	case OpRequireMax:
		if step.Max == nil {
			return fmt.Errorf("max is required for require_max")
		}
	case OpFail, OpDie, OpRetry:
		return nil
	case "":
		return fmt.Errorf("op is required")
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Cell == "" {
		return fmt.Errorf("cell is required for %s", step.Op)
	}
	if _, ok := s.Cells[step.Cell]; !ok {
		return fmt.Errorf("unknown cell %q", step.Cell)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(s *Scenario, labels map[string]bool, a *Assertion) error {
	switch a.Type {
	case AssertFinalState:
		if a.Cell == "" {
			return fmt.Errorf("cell is required for final_state")
		}
		if _, ok := s.Cells[a.Cell]; !ok {
			return fmt.Errorf("unknown cell %q", a.Cell)
		}
		if a.Expect == nil {
			return fmt.Errorf("expect is required for final_state")
		}
	case AssertOutcomeCount:
		if !labels[a.Label] {
			return fmt.Errorf("unknown transaction label %q", a.Label)
		}
		if !isOutcome(a.Outcome) {
			return fmt.Errorf("outcome must be one of %v, got %q", store.Outcomes, a.Outcome)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("count must be non-negative for outcome_count")
		}
	case AssertTotal:
		if len(a.Cells) == 0 {
			return fmt.Errorf("cells list is required for total")
		}
		for _, name := range a.Cells {
			if _, ok := s.Cells[name]; !ok {
				return fmt.Errorf("unknown cell %q", name)
			}
		}
		if a.Expect == nil {
			return fmt.Errorf("expect is required for total")
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func isOutcome(kind string) bool {
	for _, o := range store.Outcomes {
		if o == kind {
			return true
		}
	}
	return false
}
