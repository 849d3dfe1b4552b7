package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/resolver"
	"github.com/roach88/linkctl/internal/submitter"
	"github.com/roach88/linkctl/internal/verifier"
)

const instrumentation = "github.com/roach88/linkctl/internal/orchestrator"

// DefaultMaxInFlight bounds concurrent links when not configured.
const DefaultMaxInFlight = 4

// ErrRunActive is returned when a run is already executing in this process.
var ErrRunActive = errors.New("run is already executing")

// Controller drives linking runs.
type Controller struct {
	client      chain.Client
	store       RunStore
	submitter   *submitter.Submitter
	verifier    *verifier.Verifier
	archiver    Archiver
	ids         RunIDGenerator
	now         func() time.Time
	maxInFlight int
	logger      *slog.Logger
	tracer      trace.Tracer

	mu   sync.Mutex
	live map[string]*ir.RunState
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithMaxInFlight bounds how many links are submitted or verified at once.
func WithMaxInFlight(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxInFlight = n
		}
	}
}

// WithSubmitter replaces the default submitter.
func WithSubmitter(s *submitter.Submitter) Option {
	return func(c *Controller) { c.submitter = s }
}

// WithVerifier replaces the default verifier.
func WithVerifier(v *verifier.Verifier) Option {
	return func(c *Controller) { c.verifier = v }
}

// WithArchiver uploads runs once they settle.
func WithArchiver(a Archiver) Option {
	return func(c *Controller) { c.archiver = a }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(c *Controller) { c.ids = g }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a Controller. The submitter and verifier default to
// instances built on client with default policies.
func New(client chain.Client, store RunStore, opts ...Option) *Controller {
	c := &Controller{
		client:      client,
		store:       store,
		ids:         UUIDv7Generator{},
		now:         time.Now,
		maxInFlight: DefaultMaxInFlight,
		logger:      slog.Default(),
		tracer:      otel.Tracer(instrumentation),
		live:        make(map[string]*ir.RunState),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.submitter == nil {
		c.submitter = submitter.New(client, submitter.WithLogger(c.logger))
	}
	if c.verifier == nil {
		c.verifier = verifier.New(client, verifier.WithLogger(c.logger))
	}
	return c
}

// StartRun validates the descriptors, resolves every address and the call
// order, then creates and executes a new run.
//
// Pre-flight failures (*ir.ConfigurationError, *ir.CycleError) return
// before any state is persisted or any transaction is issued. Per-link
// failures are recorded in the returned Report, not returned as errors.
func (c *Controller) StartRun(ctx context.Context, descriptors []ir.LinkDescriptor, book *addressbook.Book) (*Report, error) {
	if err := ir.ValidateDescriptors(descriptors); err != nil {
		return nil, err
	}
	addresses, err := book.ResolveAll(descriptors)
	if err != nil {
		return nil, err
	}
	plan, err := resolver.Resolve(descriptors)
	if err != nil {
		return nil, err
	}
	hash, err := ir.DescriptorSetHash(descriptors)
	if err != nil {
		return nil, fmt.Errorf("hash descriptors: %w", err)
	}

	now := c.now().UTC()
	ordered := plan.Ordered()
	state := &ir.RunState{
		RunID:          c.ids.Generate(),
		DescriptorHash: hash,
		Addresses:      addresses,
		Entries:        make([]ir.Entry, len(ordered)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, d := range ordered {
		st := ir.Pending()
		st.UpdatedAt = now
		state.Entries[i] = ir.Entry{Descriptor: d.Clone(), Status: st}
	}

	c.logger.InfoContext(ctx, "starting run",
		"run_id", state.RunID,
		"links", len(ordered),
		"layers", len(plan.Layers),
		"descriptor_hash", hash,
	)
	if err := c.save(ctx, state); err != nil {
		return nil, err
	}
	return c.execute(ctx, state)
}

// ResumeOptions tune ResumeRun.
type ResumeOptions struct {
	// RetryFailed resets Failed links back to Pending before executing.
	// Verification failures are left alone: they need operator review.
	RetryFailed bool
}

// ResumeRun continues a persisted run. Confirmed links are skipped,
// Submitted and Indeterminate links are re-checked through the verifier
// (never resubmitted) and Pending links run in dependency order.
//
// An archived run is returned as-is unless RetryFailed resets at least one
// link.
func (c *Controller) ResumeRun(ctx context.Context, runID string, opts ResumeOptions) (*Report, error) {
	c.mu.Lock()
	_, active := c.live[runID]
	c.mu.Unlock()
	if active {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunActive)
	}

	state, err := c.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	if err := checkAddresses(state.Descriptors(), state.Addresses); err != nil {
		return nil, err
	}

	if opts.RetryFailed {
		if n := c.resetFailed(state); n > 0 {
			c.logger.InfoContext(ctx, "reset failed links", "run_id", runID, "links", n)
			state.Archived = false
			state.ArchivedAt = nil
			if err := c.save(ctx, state); err != nil {
				return nil, err
			}
		}
	}

	if state.Archived {
		c.logger.InfoContext(ctx, "run is archived; nothing to do", "run_id", runID)
		return newReport(state, 0, false), nil
	}

	c.logger.InfoContext(ctx, "resuming run", "run_id", runID, "seq", state.Seq)
	return c.execute(ctx, state)
}

// Status returns a copy of the run's latest state. Runs executing in this
// process are read from memory, others from the store.
func (c *Controller) Status(ctx context.Context, runID string) (*ir.RunState, error) {
	c.mu.Lock()
	if live, ok := c.live[runID]; ok {
		snapshot := live.Clone()
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	state, err := c.store.Load(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	return state, nil
}

// List summarizes persisted runs when the store supports it.
func (c *Controller) List(ctx context.Context) ([]ir.RunSummary, error) {
	lister, ok := c.store.(RunLister)
	if !ok {
		return nil, fmt.Errorf("run store %T cannot list runs", c.store)
	}
	return lister.List(ctx)
}

// resetFailed moves retryable Failed links back to Pending.
func (c *Controller) resetFailed(state *ir.RunState) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for i := range state.Entries {
		e := &state.Entries[i]
		if e.Status.Kind != ir.StatusFailed || !e.Status.Failure.Retryable() {
			continue
		}
		c.recordLocked(state, i, ir.LinkStatus{Kind: ir.StatusPending}, "retry-failed")
		n++
	}
	return n
}

// save bumps the snapshot sequence and persists it. Saves run on a
// detached context so cancellation never loses a recorded transition.
func (c *Controller) save(ctx context.Context, state *ir.RunState) error {
	c.mu.Lock()
	state.Seq++
	state.UpdatedAt = c.now().UTC()
	c.mu.Unlock()

	if err := c.store.Save(context.WithoutCancel(ctx), state); err != nil {
		return fmt.Errorf("persist run %s: %w", state.RunID, err)
	}
	return nil
}

// recordLocked applies a status change and appends it to the history.
// Callers hold c.mu.
func (c *Controller) recordLocked(state *ir.RunState, i int, next ir.LinkStatus, reason string) {
	e := &state.Entries[i]
	now := c.now().UTC()
	next.UpdatedAt = now
	state.History = append(state.History, ir.Transition{
		Seq:    int64(len(state.History) + 1),
		LinkID: e.Descriptor.ID,
		From:   e.Status.Kind,
		To:     next.Kind,
		TxID:   next.TxID,
		Reason: reason,
		At:     now,
	})
	e.Status = next
}
