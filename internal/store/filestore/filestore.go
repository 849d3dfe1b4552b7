// Package filestore keeps run snapshots as JSON files in a directory, one
// <run-id>.json per run, overwritten atomically (temp file, fsync, rename).
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/linkctl/internal/ir"
)

const ext = ".json"

// Store is a directory-backed run store. Safe for concurrent use within one
// process.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to ensure run dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(runID string) (string, error) {
	if runID == "" || runID == "." || runID == ".." || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	return filepath.Join(s.dir, runID+ext), nil
}

// Load implements the run store contract.
func (s *Store) Load(ctx context.Context, runID string) (*ir.RunState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(runID)
}

func (s *Store) load(runID string) (*ir.RunState, error) {
	path, err := s.path(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // run id validated above
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load run %s: %w", runID, ir.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	var state ir.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &state, nil
}

// Save atomically replaces the snapshot. A snapshot whose Seq is not newer
// than the stored one is refused with ir.ErrStaleSnapshot.
func (s *Store) Save(ctx context.Context, state *ir.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(state.RunID)
	if err != nil {
		return err
	}

	existing, err := s.load(state.RunID)
	switch {
	case err == nil && existing.Seq >= state.Seq:
		return fmt.Errorf("save run %s at seq %d: %w", state.RunID, state.Seq, ir.ErrStaleSnapshot)
	case err != nil && !errors.Is(err, ir.ErrRunNotFound):
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+state.RunID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("save run %s: %w", state.RunID, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("save run %s: write: %w", state.RunID, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("save run %s: fsync: %w", state.RunID, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save run %s: close: %w", state.RunID, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("save run %s: commit: %w", state.RunID, err)
	}
	return nil
}

// List summarizes every stored run, oldest first.
func (s *Store) List(ctx context.Context) ([]ir.RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var states []*ir.RunState
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		state, err := s.load(strings.TrimSuffix(name, ext))
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		states = append(states, state)
	}

	slices.SortFunc(states, func(a, b *ir.RunState) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RunID, b.RunID)
	})

	out := make([]ir.RunSummary, len(states))
	for i, st := range states {
		out[i] = ir.Summarize(st)
	}
	return out, nil
}
