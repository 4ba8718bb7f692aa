package harness

// OutcomeRecord is how one transaction instance ended.
type OutcomeRecord struct {
	Seq      int64  `json:"seq"`
	Label    string `json:"label"`
	Instance int    `json:"instance"`
	Outcome  string `json:"outcome"`
	Value    int64  `json:"value"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: true if every assertion holds.
	Pass bool `json:"pass"`

	// RunID identifies the run in the trace store.
	RunID string `json:"run_id"`

	// Outcomes lists every instance in completion order.
	Outcomes []OutcomeRecord `json:"outcomes"`

	// Counts maps label to outcome kind to number of instances.
	Counts map[string]map[string]int `json:"counts"`

	// Cells holds the committed value of every cell after the run.
	Cells map[string]int64 `json:"cells"`

	// Metrics holds the engine counters gathered after the run, keyed by
	// metric name (with an {outcome="..."} suffix for labelled series).
	Metrics map[string]float64 `json:"metrics,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID string) *Result {
	return &Result{
		Pass:     true,
		RunID:    runID,
		Outcomes: []OutcomeRecord{},
		Counts:   make(map[string]map[string]int),
		Cells:    make(map[string]int64),
		Metrics:  make(map[string]float64),
		Errors:   []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns how many instances of label ended with outcome.
func (r *Result) Count(label, outcome string) int {
	return r.Counts[label][outcome]
}
