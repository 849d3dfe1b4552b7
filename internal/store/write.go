package store

import (
	"context"
	"fmt"

	"github.com/roach88/linkctl/internal/ir"
)

// Save atomically overwrites the snapshot of state.RunID.
//
// The upsert only replaces a stored row with a lower seq; otherwise Save
// returns ir.ErrStaleSnapshot and nothing changes. Transitions not yet
// recorded are appended in the same transaction with
// ON CONFLICT(run_id, seq) DO NOTHING, so re-saving history is idempotent.
func (s *Store) Save(ctx context.Context, state *ir.RunState) error {
	snapshot, err := marshalSnapshot(state)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run %s: begin tx: %w", state.RunID, err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, descriptor_hash, seq, snapshot, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			seq = excluded.seq,
			snapshot = excluded.snapshot,
			archived = excluded.archived,
			updated_at = excluded.updated_at
		WHERE excluded.seq > runs.seq
	`,
		state.RunID,
		state.DescriptorHash,
		state.Seq,
		snapshot,
		boolToInt(state.Archived),
		formatTime(state.CreatedAt),
		formatTime(state.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save run %s: rows affected: %w", state.RunID, err)
	}
	if affected == 0 {
		return fmt.Errorf("save run %s at seq %d: %w", state.RunID, state.Seq, ir.ErrStaleSnapshot)
	}

	for _, tr := range state.History {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transitions
			(run_id, seq, link_id, from_status, to_status, tx_id, reason, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, seq) DO NOTHING
		`,
			state.RunID,
			tr.Seq,
			tr.LinkID,
			string(tr.From),
			string(tr.To),
			tr.TxID,
			tr.Reason,
			formatTime(tr.At),
		)
		if err != nil {
			return fmt.Errorf("save run %s: transition %d: %w", state.RunID, tr.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save run %s: commit: %w", state.RunID, err)
	}
	return nil
}
