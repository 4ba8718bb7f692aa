package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const counterScenario = `name: counter
description: Concurrent increments of one cell never lose an update.
cells:
  n: 0
transactions:
  - label: increment
    instances: 5
    steps:
      - {op: add, cell: n, delta: 1}
assertions:
  - {type: final_state, cell: n, expect: 5}
`

const wrongExpectScenario = `name: wrong
description: Asserts a value the run never produces.
cells:
  n: 0
transactions:
  - label: increment
    steps:
      - {op: add, cell: n, delta: 1}
assertions:
  - {type: final_state, cell: n, expect: 7}
`

const unknownFieldScenario = `name: broken
description: Uses a field the schema does not know.
cells:
  n: 0
colour: blue
transactions:
  - label: increment
    steps:
      - {op: add, cell: n, delta: 1}
assertions:
  - {type: final_state, cell: n, expect: 1}
`

const danglingCellScenario = `name: dangling
description: Refers to a cell that is not declared.
cells:
  n: 0
transactions:
  - label: increment
    steps:
      - {op: add, cell: missing, delta: 1}
assertions:
  - {type: final_state, cell: n, expect: 1}
`

// writeScenario writes content to dir/name and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// executeRoot runs the root command with args and returns stdout and the error.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
