package store

// Outcome kinds, matching the engine's transaction outcome labels.
const (
	OutcomeCommitted   = "committed"
	OutcomeFailed      = "failed"
	OutcomeDied        = "died"
	OutcomeInterrupted = "interrupted"
)

// Outcomes lists every valid outcome kind in report order.
var Outcomes = []string{OutcomeCommitted, OutcomeFailed, OutcomeDied, OutcomeInterrupted}

// Run identifies one execution of a scenario.
type Run struct {
	ID       string `json:"id"`
	Scenario string `json:"scenario"`
	Seq      int64  `json:"seq"`
}

// Outcome records how one transaction instance ended.
type Outcome struct {
	RunID    string
	Seq      int64
	Label    string
	Instance int
	Kind     string
	Value    int64
	Error    string
}
