package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/stm/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - show one run in detail
	Scenario string // optional - filter the run list
	Label    string // optional - filter outcomes to one transaction label
}

// TraceResult holds one recorded run.
type TraceResult struct {
	Run      store.Run                 `json:"run"`
	Outcomes []TraceOutcome            `json:"outcomes"`
	Counts   map[string]map[string]int `json:"counts"`
	Cells    map[string]int64          `json:"cells"`
}

// TraceOutcome is one instance outcome in completion order.
type TraceOutcome struct {
	Seq      int64  `json:"seq"`
	Label    string `json:"label"`
	Instance int    `json:"instance"`
	Outcome  string `json:"outcome"`
	Value    int64  `json:"value"`
	Error    string `json:"error,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect runs recorded with run --db",
		Long: `Inspect the trace store written by "stm run --db".

Without --run, lists the recorded runs. With --run, shows every
transaction instance of that run in completion order, the outcome
counts per label and the final cell values.

Examples:
  stm trace --db ./runs.db
  stm trace --db ./runs.db --scenario transfer
  stm trace --db ./runs.db --run 0192f0c4-... --label withdraw
  stm trace --db ./runs.db --run 0192f0c4-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "list only runs of this scenario")
	cmd.Flags().StringVar(&opts.Label, "label", "", "show only outcomes of this transaction label")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(opts.Database); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("database not found: %s", opts.Database))
	}

	st, err := store.Open(opts.Database, store.ReadOnly())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx, opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if formatter.JSON() {
			return formatter.Success(runs)
		}
		return outputRunListText(formatter.Writer, runs)
	}

	result, err := loadTrace(ctx, st, opts.RunID, opts.Label)
	if errors.Is(err, store.ErrRunNotFound) {
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

// loadTrace reads a run and its outcomes. A non-empty label filters the
// outcome list; counts and cells always cover the whole run.
func loadTrace(ctx context.Context, st *store.Store, runID, label string) (TraceResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}

	outcomes, err := st.ReadOutcomes(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	counts, err := st.OutcomeCounts(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	cells, err := st.ReadCells(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		Run:      run,
		Outcomes: []TraceOutcome{},
		Counts:   counts,
		Cells:    cells,
	}
	for _, o := range outcomes {
		if label != "" && o.Label != label {
			continue
		}
		result.Outcomes = append(result.Outcomes, TraceOutcome{
			Seq:      o.Seq,
			Label:    o.Label,
			Instance: o.Instance,
			Outcome:  o.Kind,
			Value:    o.Value,
			Error:    o.Error,
		})
	}
	return result, nil
}

func outputRunListText(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s\n", r.ID, r.Scenario)
	}
	return nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {

	fmt.Fprintf(w, "Run: %s (scenario %s)\n", result.Run.ID, result.Run.Scenario)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Outcomes:")
	for _, o := range result.Outcomes {
		fmt.Fprintf(w, "  [%d] %s#%d %s", o.Seq, o.Label, o.Instance, o.Outcome)
		if o.Outcome == store.OutcomeCommitted {
			fmt.Fprintf(w, " value=%d", o.Value)
		}
		fmt.Fprintln(w)
		if verbose && o.Error != "" {
			fmt.Fprintf(w, "      %s\n", o.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Counts:")
	for _, label := range sortedKeys(result.Counts) {
		for _, kind := range store.Outcomes {
			if n := result.Counts[label][kind]; n > 0 {
				fmt.Fprintf(w, "  %s %s=%d\n", label, kind, n)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cells:")
	for _, name := range sortedKeys(result.Cells) {
		fmt.Fprintf(w, "  %s = %d\n", name, result.Cells[name])
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
