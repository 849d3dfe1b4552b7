package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkctl/internal/ir"
)

func TestMemStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	state := &ir.RunState{RunID: "run-1", Seq: 1, CreatedAt: Epoch}
	require.NoError(t, s.Save(ctx, state))

	state.Seq = 99 // the store keeps its own copy
	got, err := s.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, 1, s.Saves())
}

func TestMemStore_RejectsStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Save(ctx, &ir.RunState{RunID: "run-1", Seq: 2}))
	err := s.Save(ctx, &ir.RunState{RunID: "run-1", Seq: 2})
	assert.ErrorIs(t, err, ir.ErrStaleSnapshot)
}

func TestMemStore_LoadMissing(t *testing.T) {
	_, err := NewMemStore().Load(context.Background(), "nope")
	assert.True(t, errors.Is(err, ir.ErrRunNotFound))
}

func TestMemStore_FailAfter(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.FailAfter(1)

	require.NoError(t, s.Save(ctx, &ir.RunState{RunID: "run-1", Seq: 1}))
	assert.ErrorIs(t, s.Save(ctx, &ir.RunState{RunID: "run-1", Seq: 2}), ErrInjected)
}

func TestMemStore_ListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	s.Put(&ir.RunState{RunID: "b", CreatedAt: Epoch})
	s.Put(&ir.RunState{RunID: "a", CreatedAt: Epoch.Add(1)})
	s.Put(&ir.RunState{RunID: "c", CreatedAt: Epoch})

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
}

func TestScenarioBook_ResolvesScenario(t *testing.T) {
	addrs, err := ScenarioBook().ResolveAll(ScenarioDescriptors())
	require.NoError(t, err)
	assert.Equal(t, GipToken, addrs["gip-token"])
	assert.Equal(t, Principal("nft-collection"), addrs["nft-collection"])
	assert.Len(t, addrs, 5)
}
