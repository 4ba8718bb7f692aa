package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/stm/internal/harness"
)

// FileValidation holds the validation result of one scenario file.
type FileValidation struct {
	File   string                `json:"file"`
	Name   string                `json:"name,omitempty"`
	Valid  bool                  `json:"valid"`
	Code   string                `json:"code,omitempty"`
	Issues []harness.SchemaIssue `json:"issues,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file|dir>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema.

Each file is checked against the embedded CUE schema, decoded strictly
and then checked for dangling cell references and missing assertion
fields. Nothing is executed.

Exit codes:
  0 - All scenarios valid
  1 - One or more scenarios invalid
  2 - Command error (missing path, no scenario files)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	files, err := findScenarioFiles(paths, "")
	if err != nil {
		return outputValidateError(formatter, ErrCodeNotFound, err)
	}
	if len(files) == 0 {
		return outputValidateError(formatter, ErrCodeNoScenario, errors.New("no scenario files found"))
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := validateFile(file)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.JSON() {
		return formatter.Report(result, ErrCodeInvalid, countInvalid(result), "invalid")
	}
	return outputValidateText(formatter, result)
}

// validateFile loads one scenario and classifies any error.
func validateFile(file string) FileValidation {
	scenario, err := harness.LoadScenario(file)
	if err == nil {
		return FileValidation{File: file, Name: scenario.Name, Valid: true}
	}

	fv := FileValidation{File: file, Code: ErrCodeInvalid}
	var schemaErr *harness.SchemaError
	if errors.As(err, &schemaErr) {
		fv.Code = ErrCodeSchema
		fv.Issues = schemaErr.Issues
		return fv
	}
	fv.Issues = []harness.SchemaIssue{{Message: err.Error()}}
	return fv
}

func outputValidateError(formatter *OutputFormatter, code string, err error) error {
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "validate", err)
}

func outputValidateText(formatter *OutputFormatter, result ValidationResult) error {
	w := formatter.Writer
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s\n", fv.File)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.File)
		for _, issue := range fv.Issues {
			if issue.Path != "" {
				fmt.Fprintf(w, "  %s: %s\n", issue.Path, issue.Message)
			} else {
				fmt.Fprintf(w, "  %s\n", issue.Message)
			}
		}
	}

	if invalid := countInvalid(result); invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", invalid))
	}

	fmt.Fprintln(w, "✓ All scenarios valid")
	return nil
}

func countInvalid(result ValidationResult) int {
	n := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			n++
		}
	}
	return n
}
