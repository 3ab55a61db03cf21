package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoRuns is returned by LatestRun on an empty store.
var ErrNoRuns = errors.New("no runs recorded")

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, version FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: not found", id)
	}
	return run, err
}

// LatestRun returns the most recently begun run, or ErrNoRuns.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, version FROM runs
		ORDER BY seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	return run, err
}

// Runs returns every run, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, version FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadPlans returns the plans of a run in write order.
//
// Returns an empty slice (not nil) if the run has no plans.
func (s *Store) ReadPlans(ctx context.Context, runID string) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, spec, root, source, path_hash, directives, statements
		FROM plans
		WHERE run_id = ?
		ORDER BY seq ASC, spec COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// FindPlans returns every stored plan with the given hash, oldest run
// first.
func (s *Store) FindPlans(ctx context.Context, pathHash string) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.run_id, p.seq, p.spec, p.root, p.source, p.path_hash, p.directives, p.statements
		FROM plans p
		JOIN runs r ON p.run_id = r.id
		WHERE p.path_hash = ?
		ORDER BY r.seq ASC, p.seq ASC, p.spec COLLATE BINARY ASC
	`, pathHash)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started string
	if err := row.Scan(&run.ID, &started, &run.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: started_at: %w", run.ID, err)
	}
	run.StartedAt = t
	return run, nil
}

func scanPlan(row scanner) (Plan, error) {
	var p Plan
	var stmts string
	if err := row.Scan(&p.RunID, &p.Seq, &p.Spec, &p.Root, &p.Source, &p.PathHash, &p.Directives, &stmts); err != nil {
		return Plan{}, fmt.Errorf("scan plan: %w", err)
	}
	parsed, err := unmarshalStatements(stmts)
	if err != nil {
		return Plan{}, err
	}
	p.Statements = parsed
	return p, nil
}
