package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// writeTestRun inserts a run so outcomes and cells can reference it.
func writeTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.WriteRun(context.Background(), Run{ID: id, Scenario: "test", Seq: 1}); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
}

// createTestOutcome creates an outcome with minimal required fields.
func createTestOutcome(runID, label string, instance int, kind string, seq int64) Outcome {
	return Outcome{
		RunID:    runID,
		Seq:      seq,
		Label:    label,
		Instance: instance,
		Kind:     kind,
	}
}
