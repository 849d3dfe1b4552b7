package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/linkctl/internal/ir"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"runs", "transitions"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Error(err)
		}
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := createTestRun("run-1", 1)
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Seq != 1 || len(got.Entries) != 2 {
		t.Fatalf("Load() = seq %d, %d entries; want seq 1, 2 entries", got.Seq, len(got.Entries))
	}
	if got.Addresses["token"] != state.Addresses["token"] {
		t.Errorf("address not preserved: %q", got.Addresses["token"])
	}
	if !got.CreatedAt.Equal(state.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, state.CreatedAt)
	}
	if got.Entries[0].Descriptor.Args[0].Ref != "token" {
		t.Errorf("ref arg not preserved: %+v", got.Entries[0].Descriptor.Args)
	}
}

func TestSave_OverwritesWithNewerSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := createTestRun("run-1", 1)
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	advance(state, "0xabc")
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	got, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Entries[0].Status.Kind != ir.StatusSubmitted || got.Entries[0].Status.TxID != "0xabc" {
		t.Errorf("entry status = %v, want submitted(0xabc)", got.Entries[0].Status)
	}
}

func TestSave_RejectsStaleSnapshot(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	newer := createTestRun("run-1", 5)
	if err := s.Save(ctx, newer); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	for _, seq := range []int64{5, 4} {
		stale := createTestRun("run-1", seq)
		stale.Entries[0].Status = ir.LinkStatus{Kind: ir.StatusFailed, Failure: ir.FailureRejected}
		err := s.Save(ctx, stale)
		if !errors.Is(err, ir.ErrStaleSnapshot) {
			t.Fatalf("Save(seq=%d) error = %v, want ErrStaleSnapshot", seq, err)
		}
	}

	got, err := s.Load(ctx, "run-1")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Entries[0].Status.Kind != ir.StatusPending {
		t.Errorf("stale save leaked into store: %v", got.Entries[0].Status)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, ir.ErrRunNotFound) {
		t.Fatalf("Load() error = %v, want ErrRunNotFound", err)
	}
}

func TestList_OrderedByCreation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	second := createTestRun("run-b", 1)
	second.CreatedAt = testEpoch.Add(1)
	first := createTestRun("run-a", 1)
	first.Entries[0].Status = ir.LinkStatus{Kind: ir.StatusConfirmed}
	first.Archived = true

	for _, st := range []*ir.RunState{second, first} {
		if err := s.Save(ctx, st); err != nil {
			t.Fatalf("Save(%s) failed: %v", st.RunID, err)
		}
	}

	runs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("List() returned %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run-a" || runs[1].RunID != "run-b" {
		t.Errorf("List() order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
	if !runs[0].Archived || runs[0].Confirmed != 1 || runs[0].Links != 2 {
		t.Errorf("summary = %+v", runs[0])
	}
}

func TestHistory_AppendOnly(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	state := createTestRun("run-1", 1)
	advance(state, "0x01")
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// confirm the same link; the first transition is re-sent and ignored
	state.Seq++
	state.Entries[0].Status.Kind = ir.StatusConfirmed
	state.History = append(state.History, ir.Transition{
		Seq: state.Seq, LinkID: "registry.set-token",
		From: ir.StatusSubmitted, To: ir.StatusConfirmed, TxID: "0x01", At: testEpoch,
	})
	if err := s.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	history, err := s.History(ctx, "run-1", "")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() returned %d transitions, want 2", len(history))
	}
	if history[0].To != ir.StatusSubmitted || history[1].To != ir.StatusConfirmed {
		t.Errorf("History() = %+v", history)
	}
	if history[0].Seq >= history[1].Seq {
		t.Errorf("History() not ordered by seq: %d, %d", history[0].Seq, history[1].Seq)
	}

	filtered, err := s.History(ctx, "run-1", "token.set-fee")
	if err != nil {
		t.Fatalf("History() failed: %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("History(token.set-fee) = %+v, want none", filtered)
	}
}
