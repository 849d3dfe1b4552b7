package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/linkctl/internal/ir"
)

// ErrInjected is returned by MemStore once its failure budget is reached.
var ErrInjected = errors.New("injected store failure")

// MemStore is an in-memory run store with the same stale-snapshot rule as
// the persistent stores. It can be told to start failing after a number of
// successful saves.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MemStore struct {
	mu        sync.Mutex
	runs      map[string]*ir.RunState
	saves     int
	failAfter int
}

// NewMemStore creates an empty store that never fails.
func NewMemStore() *MemStore {
	return &MemStore{runs: make(map[string]*ir.RunState), failAfter: -1}
}

// FailAfter makes every save after the first n successful ones return
// ErrInjected. A negative n disables injection.
func (s *MemStore) FailAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = n
}

// Saves returns the number of successful saves.
func (s *MemStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Put stores a snapshot directly, bypassing the stale check.
func (s *MemStore) Put(state *ir.RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[state.RunID] = state.Clone()
}

// Load returns a copy of the stored run.
func (s *MemStore) Load(ctx context.Context, runID string) (*ir.RunState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", runID, ir.ErrRunNotFound)
	}
	return state.Clone(), nil
}

// Save stores a copy of state unless it is stale or a failure is injected.
func (s *MemStore) Save(ctx context.Context, state *ir.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.saves >= s.failAfter {
		return ErrInjected
	}
	if prev, ok := s.runs[state.RunID]; ok && state.Seq <= prev.Seq {
		return fmt.Errorf("%s: seq %d <= %d: %w", state.RunID, state.Seq, prev.Seq, ir.ErrStaleSnapshot)
	}
	s.runs[state.RunID] = state.Clone()
	s.saves++
	return nil
}

// List summarizes stored runs ordered by creation time, then id.
func (s *MemStore) List(ctx context.Context) ([]ir.RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ir.RunSummary, 0, len(s.runs))
	for _, state := range s.runs {
		out = append(out, ir.Summarize(state))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s.runs[out[i].RunID], s.runs[out[j].RunID]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.RunID < b.RunID
	})
	return out, nil
}
