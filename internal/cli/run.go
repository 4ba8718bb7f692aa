package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/stm/internal/harness"
	"github.com/roach88/stm/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string // optional file-backed trace store
	Update   bool   // regenerate golden files
	Filter   string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string                    `json:"name"`
	File   string                    `json:"file"`
	Pass   bool                      `json:"pass"`
	RunID  string                    `json:"run_id,omitempty"`
	Counts map[string]map[string]int `json:"counts,omitempty"`
	Cells  map[string]int64          `json:"cells,omitempty"`
	Errors []string                  `json:"errors,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file|dir>...",
		Short: "Run transaction scenarios",
		Long: `Run scenario files against a fresh STM engine each.

Every transaction instance commits concurrently. Instances still suspended
when the settle window closes are interrupted. Outcomes and final cell
values are checked against the scenario's assertions and, when present,
against <dir>/golden/<name>.golden.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, unreadable database, etc.)

Examples:
  stm run ./scenarios
  stm run ./scenarios --filter "transfer*"
  stm run ./scenarios --update
  stm run ./scenarios --db ./runs.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	logger := newLogger(formatter.ErrWriter, opts.Verbose)

	files, err := findScenarioFiles(paths, opts.Filter)
	if err != nil {
		if GetExitCode(err) == ExitCommandError {
			return err
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(RunResult{Scenarios: []ScenarioResult{}})
		}
		return formatter.Success("No scenarios found.")
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runOpts []harness.Option
	runOpts = append(runOpts, harness.WithLogger(logger))
	if opts.Database != "" {
		logger.Info("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		// Fixed run ids would collide across invocations sharing a database.
		runOpts = append(runOpts, harness.WithStore(st), harness.WithRunIDGenerator(harness.UUIDRunIDs{}))
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(ctx, file, opts, runOpts)
		if !formatter.JSON() {
			writeScenarioText(formatter.Writer, sr, opts.Update)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return formatter.Report(result, ErrCodeRunFailed, result.Failed, "failed")
	}
	return outputRunText(formatter.Writer, result)
}

// newLogger writes text logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runScenario executes a single scenario file.
func runScenario(ctx context.Context, file string, opts *RunOptions, runOpts []harness.Option) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.RunID = result.RunID
	sr.Counts = result.Counts
	sr.Cells = result.Cells
	sr.Errors = result.Errors

	snapshot, err := harness.NewSnapshot(scenario.Name, result).Marshal()
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to marshal snapshot: %v", err))
		return sr
	}

	goldenPath := goldenFilePath(file)
	if opts.Update {
		if err := writeGoldenFile(goldenPath, snapshot); err != nil {
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return sr
		}
		sr.Pass = result.Pass
		return sr
	}

	golden, err := os.ReadFile(goldenPath)
	switch {
	case os.IsNotExist(err):
		// No golden file: assertions alone decide.
	case err != nil:
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		return sr
	case !bytes.Equal(golden, snapshot):
		sr.Errors = append(sr.Errors, "snapshot does not match golden file (run with --update to regenerate)")
		return sr
	}

	sr.Pass = result.Pass
	return sr
}

// writeGoldenFile writes a snapshot, creating the golden directory.
func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func writeScenarioText(w io.Writer, sr ScenarioResult, updated bool) {
	if !sr.Pass {
		fmt.Fprintf(w, "✗ %s\n", sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if updated {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", sr.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", sr.Name)
}

// outputRunText prints the summary line.
func outputRunText(w io.Writer, result RunResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
