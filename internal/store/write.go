package store

import (
	"context"
	"fmt"
	"time"
)

// Run is one compile run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// BeginRun records a new compile run stamped by the store's clock.
func (s *Store) BeginRun(ctx context.Context, version string) (Run, error) {
	run := Run{
		ID:        s.ids.Generate(),
		StartedAt: s.now().UTC(),
		Version:   version,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, version)
		VALUES (?, ?, ?)
	`,
		run.ID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.Version,
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return run, nil
}

// WritePlan inserts a plan into a run and returns it with its seq.
//
// Uses ON CONFLICT(run_id, spec, path_hash) DO NOTHING for idempotency. If
// the plan already exists, returns the stored seq and inserted=false.
//
// Note: The run referenced by p.RunID must exist (foreign key constraint).
func (s *Store) WritePlan(ctx context.Context, p Plan) (Plan, bool, error) {
	stmts, err := marshalStatements(p.Statements)
	if err != nil {
		return p, false, fmt.Errorf("write plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return p, false, fmt.Errorf("write plan: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var next int64
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM plans WHERE run_id = ?
	`, p.RunID).Scan(&next); err != nil {
		return p, false, fmt.Errorf("write plan: next seq: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO plans
		(run_id, seq, spec, root, source, path_hash, directives, statements)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, spec, path_hash) DO NOTHING
	`,
		p.RunID,
		next,
		p.Spec,
		p.Root,
		p.Source,
		p.PathHash,
		p.Directives,
		stmts,
	)
	if err != nil {
		return p, false, fmt.Errorf("write plan: insert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return p, false, fmt.Errorf("write plan: rows affected: %w", err)
	}

	inserted := affected > 0
	if inserted {
		p.Seq = next
	} else if err := tx.QueryRowContext(ctx, `
		SELECT seq FROM plans WHERE run_id = ? AND spec = ? AND path_hash = ?
	`, p.RunID, p.Spec, p.PathHash).Scan(&p.Seq); err != nil {
		return p, false, fmt.Errorf("write plan: existing seq: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return p, false, fmt.Errorf("write plan: commit: %w", err)
	}
	return p, inserted, nil
}
