package store

import (
	"context"
	"fmt"
)

// WriteRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, seq)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.Scenario, run.Seq)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// WriteOutcome inserts an outcome record.
//
// Each (run, label, instance) has exactly one outcome; a second write for
// the same instance is silently ignored. The run must exist (foreign key
// constraint) and Kind must be one of the Outcome* constants.
func (s *Store) WriteOutcome(ctx context.Context, o Outcome) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (run_id, seq, label, instance, outcome, value, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		o.RunID,
		o.Seq,
		o.Label,
		o.Instance,
		o.Kind,
		o.Value,
		o.Error,
	)
	if err != nil {
		return fmt.Errorf("write outcome: %w", err)
	}
	return nil
}

// WriteCells records final cell values for a run, replacing earlier values.
// All cells are written in one SQL transaction.
func (s *Store) WriteCells(ctx context.Context, runID string, cells map[string]int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write cells: %w", err)
	}
	defer tx.Rollback()

	for name, value := range cells {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cells (run_id, name, value)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id, name) DO UPDATE SET value = excluded.value
		`, runID, name, value)
		if err != nil {
			return fmt.Errorf("write cell %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write cells: %w", err)
	}
	return nil
}
