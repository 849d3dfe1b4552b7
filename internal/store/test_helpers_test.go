package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/linkctl/internal/ir"
)

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestStore creates a new file-backed store in a temp dir.
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

// createTestRun creates a two-link run at the given seq.
func createTestRun(runID string, seq int64) *ir.RunState {
	return &ir.RunState{
		RunID:          runID,
		DescriptorHash: "sha256:test",
		Addresses: map[string]string{
			"registry": "SP000000000000000000002Q6VF78.registry",
			"token":    "SP000000000000000000002Q6VF78.token",
		},
		Entries: []ir.Entry{
			{
				Descriptor: ir.LinkDescriptor{
					ID:       "registry.set-token",
					Contract: "registry",
					Function: "set-token",
					Args:     []ir.Arg{ir.RefArg("token")},
				},
				Status: ir.Pending(),
			},
			{
				Descriptor: ir.LinkDescriptor{
					ID:       "token.set-fee",
					Contract: "token",
					Function: "set-fee",
					Args:     []ir.Arg{ir.LiteralArg("u100")},
				},
				Status: ir.Pending(),
			},
		},
		Seq:       seq,
		CreatedAt: testEpoch,
		UpdatedAt: testEpoch,
	}
}

// advance marks the first entry Submitted and records the transition.
func advance(state *ir.RunState, txID string) {
	state.Seq++
	state.UpdatedAt = state.UpdatedAt.Add(time.Second)
	state.Entries[0].Status = ir.LinkStatus{Kind: ir.StatusSubmitted, TxID: txID, Attempts: 1, UpdatedAt: state.UpdatedAt}
	state.History = append(state.History, ir.Transition{
		Seq:    state.Seq,
		LinkID: state.Entries[0].Descriptor.ID,
		From:   ir.StatusPending,
		To:     ir.StatusSubmitted,
		TxID:   txID,
		At:     state.UpdatedAt,
	})
}
