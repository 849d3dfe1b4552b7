package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/linkctl/internal/ir"
)

// Load returns the latest snapshot of runID, or an error wrapping
// ir.ErrRunNotFound.
func (s *Store) Load(ctx context.Context, runID string) (*ir.RunState, error) {
	var snapshot string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM runs WHERE run_id = ?
	`, runID).Scan(&snapshot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load run %s: %w", runID, ir.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	state, err := unmarshalSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return state, nil
}

// List returns a summary of every stored run, oldest first.
func (s *Store) List(ctx context.Context) ([]ir.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot FROM runs
		ORDER BY created_at ASC, run_id ASC COLLATE BINARY
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []ir.RunSummary
	for rows.Next() {
		var snapshot string
		if err := rows.Scan(&snapshot); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		state, err := unmarshalSnapshot(snapshot)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, ir.Summarize(state))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// History returns the recorded transitions of runID in seq order,
// optionally restricted to one link.
func (s *Store) History(ctx context.Context, runID, linkID string) ([]ir.Transition, error) {
	query := `
		SELECT seq, link_id, from_status, to_status, tx_id, reason, at
		FROM transitions
		WHERE run_id = ?`
	args := []any{runID}
	if linkID != "" {
		query += " AND link_id = ?"
		args = append(args, linkID)
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history of run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []ir.Transition
	for rows.Next() {
		var (
			tr       ir.Transition
			from, to string
			at       string
		)
		if err := rows.Scan(&tr.Seq, &tr.LinkID, &from, &to, &tr.TxID, &tr.Reason, &at); err != nil {
			return nil, fmt.Errorf("history of run %s: scan: %w", runID, err)
		}
		tr.From = ir.StatusKind(from)
		tr.To = ir.StatusKind(to)
		if tr.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("history of run %s: %w", runID, err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history of run %s: %w", runID, err)
	}
	return out, nil
}
