package harness

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// SchemaError reports the fields of a scenario document that do not match
// the scenario schema.
type SchemaError struct {
	Issues []SchemaIssue
}

// SchemaIssue is one schema violation.
type SchemaIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	var buf strings.Builder
	buf.WriteString("scenario does not match schema:")
	for _, issue := range e.Issues {
		fmt.Fprintf(&buf, "\n  %s: %s", issue.Path, issue.Message)
	}
	return buf.String()
}

// ValidateSchema checks scenario YAML against the embedded CUE schema.
//
// The document is decoded generically, encoded as a CUE value and unified
// with #Scenario; the result must be concrete. Returns a *SchemaError
// listing every violation, or a plain error if the YAML is malformed.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if doc == nil {
		return &SchemaError{Issues: []SchemaIssue{{Path: "", Message: "empty document"}}}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	value := ctx.Encode(doc)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return toSchemaError(err)
	}
	return nil
}

// toSchemaError flattens CUE's error list.
func toSchemaError(err error) *SchemaError {
	var issues []SchemaIssue
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		issues = append(issues, SchemaIssue{
			Path:    strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(issues) == 0 {
		issues = append(issues, SchemaIssue{Message: err.Error()})
	}
	return &SchemaError{Issues: issues}
}
