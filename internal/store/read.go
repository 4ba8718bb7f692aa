package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrCellNotFound is returned by ReadCell for a cell the run never recorded.
var ErrCellNotFound = errors.New("cell not found")

// ErrRunNotFound is returned by ReadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns a single run by id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, scenario, seq FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Scenario, &r.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run, oldest first.
// An empty scenario matches all runs.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scenario, seq FROM runs
		WHERE ? = '' OR scenario = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, scenario, scenario)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Scenario, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, nil
}

// ReadOutcomes returns all outcomes of a run.
// Results are ordered deterministically: ORDER BY seq ASC, label, instance.
//
// Returns an empty slice (not nil) if the run has no outcomes.
func (s *Store) ReadOutcomes(ctx context.Context, runID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, label, instance, outcome, value, error
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC, label COLLATE BINARY ASC, instance ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Label, &o.Instance, &o.Kind, &o.Value, &o.Error); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return outcomes, nil
}

// CountOutcomes returns how many instances of label ended with kind.
func (s *Store) CountOutcomes(ctx context.Context, runID, label, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM outcomes
		WHERE run_id = ? AND label = ? AND outcome = ?
	`, runID, label, kind).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count outcomes: %w", err)
	}
	return n, nil
}

// OutcomeCounts returns, per label, the number of instances per outcome kind.
// Kinds with no instances are omitted.
func (s *Store) OutcomeCounts(ctx context.Context, runID string) (map[string]map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, outcome, COUNT(*)
		FROM outcomes
		WHERE run_id = ?
		GROUP BY label, outcome
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var label, kind string
		var n int
		if err := rows.Scan(&label, &kind, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		if counts[label] == nil {
			counts[label] = make(map[string]int)
		}
		counts[label][kind] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}

	return counts, nil
}

// ReadCell returns the final value of one cell.
// Returns ErrCellNotFound if the run has no such cell.
func (s *Store) ReadCell(ctx context.Context, runID, name string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM cells WHERE run_id = ? AND name = ?
	`, runID, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCellNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("read cell: %w", err)
	}
	return value, nil
}

// ReadCells returns the final value of every cell of a run.
func (s *Store) ReadCells(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value FROM cells
		WHERE run_id = ?
		ORDER BY name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query cells: %w", err)
	}
	defer rows.Close()

	cells := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan cell: %w", err)
		}
		cells[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cells: %w", err)
	}

	return cells, nil
}
