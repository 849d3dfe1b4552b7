package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/linkctl/internal/ir"
)

// RunStore persists run snapshots. Save must overwrite atomically and
// refuse snapshots whose Seq is not newer than the stored one.
type RunStore interface {
	Load(ctx context.Context, runID string) (*ir.RunState, error)
	Save(ctx context.Context, state *ir.RunState) error
}

// RunLister is implemented by stores that can enumerate runs.
type RunLister interface {
	List(ctx context.Context) ([]ir.RunSummary, error)
}

// Archiver receives settled runs.
type Archiver interface {
	Archive(ctx context.Context, state *ir.RunState) error
}

// RunIDGenerator produces run identifiers.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids, so listing runs
// by id also lists them by start time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run ids for testing.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedGenerator creates a generator that returns ids in order.
//
// Example:
//
//	gen := NewFixedGenerator("run-1", "run-2")
//	gen.Generate() // "run-1"
//	gen.Generate() // "run-2"
//	gen.Generate() // panic: all run ids exhausted
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id.
//
// Panics if all ids have been consumed, which catches a test starting more
// runs than it expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.ids) {
		panic("FixedGenerator: all run ids exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}
