package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: valid
description: a valid scenario
cells: {a: 1}
transactions:
  - label: bump
    steps:
      - {op: add, cell: a, delta: 1}
assertions:
  - {type: final_state, cell: a, expect: 2}
`

func TestLoadScenario_Testdata(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, file := range files {
		t.Run(filepath.Base(file), func(t *testing.T) {
			s, err := LoadScenario(file)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Name)
			assert.NotEmpty(t, s.Transactions)
		})
	}
}

func TestLoadScenario_Fields(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/transfer.yaml")
	require.NoError(t, err)

	assert.Equal(t, "transfer", s.Name)
	assert.Equal(t, "run-transfer", s.RunID)
	assert.Equal(t, map[string]int64{"a": 100, "b": 0}, s.Cells)
	assert.Equal(t, 100*time.Millisecond, s.Settle)

	require.Len(t, s.Transactions, 1)
	tx := s.Transactions[0]
	assert.Equal(t, 3, tx.instances())
	require.Len(t, tx.Steps, 3)
	assert.Equal(t, OpRequire, tx.Steps[0].Op)
	require.NotNil(t, tx.Steps[0].Min)
	assert.Equal(t, int64(50), *tx.Steps[0].Min)
	assert.Equal(t, int64(-50), tx.Steps[1].Delta)

	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertTotal, s.Assertions[2].Type)
	assert.Equal(t, []string{"a", "b"}, s.Assertions[2].Cells)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestParseScenario_Defaults(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, 1, s.Transactions[0].instances())
	assert.Equal(t, DefaultSettle, s.settle())
	assert.Empty(t, s.RunID)
}

func TestParseScenario_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown top-level field",
			yaml: validScenario + "flow_token: x\n",
		},
		{
			name: "unknown op",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: explode, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
		},
		{
			name: "string cell value",
			yaml: `
name: s
description: d
cells: {a: "one"}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
		},
		{
			name: "empty steps",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: []
assertions: [{type: final_state, cell: a, expect: 1}]
`,
		},
		{
			name: "bad settle",
			yaml: validScenario + "settle: soon\n",
		},
		{
			name: "missing name",
			yaml: `
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)

			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr), "expected schema error, got %v", err)
			assert.NotEmpty(t, schemaErr.Issues)
		})
	}
}

func TestParseScenario_SemanticViolations(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown cell in step",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: add, cell: b, delta: 1}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
			wantErr: `unknown cell "b"`,
		},
		{
			name: "require without min",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: require, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
			wantErr: "min is required",
		},
		{
			name: "duplicate label",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
			wantErr: `duplicate label "t"`,
		},
		{
			name: "both alternatives",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: retry}]
    or_else: [{op: read, cell: a}]
    or_try: [{op: read, cell: a}]
assertions: [{type: final_state, cell: a, expect: 1}]
`,
			wantErr: "mutually exclusive",
		},
		{
			name: "empty cells",
			yaml: `
name: s
description: d
cells: {}
transactions:
  - label: t
    steps: [{op: retry}]
assertions: [{type: outcome_count, label: t, outcome: committed, count: 0}]
`,
			wantErr: "cells map is required",
		},
		{
			name: "final_state without expect",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: final_state, cell: a}]
`,
			wantErr: "expect is required",
		},
		{
			name: "outcome_count for unknown label",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: outcome_count, label: nope, outcome: committed, count: 1}]
`,
			wantErr: `unknown transaction label "nope"`,
		},
		{
			name: "total with unknown cell",
			yaml: `
name: s
description: d
cells: {a: 1}
transactions:
  - label: t
    steps: [{op: read, cell: a}]
assertions: [{type: total, cells: [a, z], expect: 1}]
`,
			wantErr: `unknown cell "z"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
