package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/resolver"
	"github.com/roach88/linkctl/internal/submitter"
	"github.com/roach88/linkctl/internal/verifier"
)

type jobKind int

const (
	jobSubmit jobKind = iota // Pending: pre-check, submit, verify
	jobVerify                // Submitted/Indeterminate: re-check only
)

// event is a status report from a worker. Only final events free a slot.
type event struct {
	index  int
	status ir.LinkStatus
	reason string
	final  bool
}

// execute runs every eligible link of state to completion or cancellation.
// It is the only writer of state while it runs.
func (c *Controller) execute(ctx context.Context, state *ir.RunState) (*Report, error) {
	ctx, span := c.tracer.Start(ctx, "orchestrator.execute", trace.WithAttributes(
		attribute.String("linkctl.run_id", state.RunID),
		attribute.Int("linkctl.links", len(state.Entries)),
	))
	defer span.End()

	logger := c.logger.With("run_id", state.RunID)

	graph, err := resolver.Build(state.Descriptors())
	if err != nil {
		return nil, err
	}
	if err := c.track(state); err != nil {
		return nil, err
	}
	defer c.untrack(state.RunID)

	events := make(chan event)
	dispatched := make([]bool, len(state.Entries))
	inflight := 0
	transactions := 0
	var runErr error

	dispatch := func() {
		for i := range state.Entries {
			if inflight >= c.maxInFlight {
				return
			}
			if dispatched[i] {
				continue
			}
			e := state.Entries[i]
			var kind jobKind
			switch {
			case e.Status.Kind == ir.StatusPending && depsConfirmed(graph, state, i):
				kind = jobSubmit
			case (e.Status.Kind == ir.StatusSubmitted || e.Status.Kind == ir.StatusIndeterminate) && e.Status.TxID != "":
				kind = jobVerify
			default:
				continue
			}
			dispatched[i] = true
			inflight++
			go c.work(ctx, logger, i, kind, e.Descriptor.Clone(), e.Status, state.Addresses, events)
		}
	}

	for {
		if runErr == nil && ctx.Err() == nil {
			dispatch()
		}
		if inflight == 0 {
			break
		}

		ev := <-events
		if ev.final {
			inflight--
		}
		from := state.Entries[ev.index].Status.Kind
		applied, err := c.apply(ctx, state, ev)
		if err != nil && runErr == nil {
			runErr = err
			logger.ErrorContext(ctx, "stopping dispatch", "error", err)
		}
		if applied && from == ir.StatusPending && ev.status.Kind == ir.StatusSubmitted {
			transactions++
		}
	}

	interrupted := ctx.Err() != nil
	if interrupted {
		logger.WarnContext(ctx, "run interrupted; resume to continue", "error", ctx.Err())
	}

	changed := c.updateBlocked(graph, state)
	archivedNow := false
	if state.Settled() && !state.Archived {
		c.mu.Lock()
		at := c.now().UTC()
		state.Archived = true
		state.ArchivedAt = &at
		c.mu.Unlock()
		archivedNow = true
		changed = true
	}
	if changed && runErr == nil {
		if err := c.save(ctx, state); err != nil {
			runErr = err
		}
	}

	report := newReport(state.Clone(), transactions, interrupted)
	if archivedNow && runErr == nil && c.archiver != nil {
		if err := c.archiver.Archive(context.WithoutCancel(ctx), report.State); err != nil {
			logger.WarnContext(ctx, "archive upload failed", "error", err)
			report.ArchiveErr = err
		}
	}

	span.SetAttributes(
		attribute.Int("linkctl.transactions", transactions),
		attribute.Bool("linkctl.success", report.Success),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "run aborted")
	}
	logger.InfoContext(ctx, "run finished",
		"confirmed", report.Counts[ir.StatusConfirmed],
		"failed", report.Counts[ir.StatusFailed],
		"indeterminate", report.Counts[ir.StatusIndeterminate],
		"pending", report.Counts[ir.StatusPending],
		"transactions", transactions,
	)
	return report, runErr
}

// apply records a worker event and persists it. It reports whether a
// transition happened.
func (c *Controller) apply(ctx context.Context, state *ir.RunState, ev event) (bool, error) {
	c.mu.Lock()
	e := &state.Entries[ev.index]
	from, to := e.Status.Kind, ev.status.Kind
	if from == to && from != ir.StatusIndeterminate {
		c.mu.Unlock()
		return false, nil
	}
	if !ir.CanTransition(from, to) {
		c.mu.Unlock()
		return false, fmt.Errorf("link %s: illegal transition %s -> %s", e.Descriptor.ID, from, to)
	}
	c.recordLocked(state, ev.index, ev.status, ev.reason)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "link transition",
		"run_id", state.RunID,
		"link", e.Descriptor.ID,
		"from", from,
		"to", to,
		"tx_id", ev.status.TxID,
		"reason", ev.reason,
	)
	return true, c.save(ctx, state)
}

// work executes one job and reports back on events.
func (c *Controller) work(ctx context.Context, logger *slog.Logger, i int, kind jobKind, d ir.LinkDescriptor, current ir.LinkStatus, addresses map[string]string, events chan<- event) {
	logger = logger.With("link", d.ID)
	send := func(ev event) {
		ev.index = i
		events <- ev
	}

	rb, err := readbackFor(d, addresses)
	if err != nil {
		send(failed(ir.FailureRejected, current, err.Error()))
		return
	}
	if rb == nil {
		logger.InfoContext(ctx, "no readback derivable; verification limited to transaction status")
	}

	if kind == jobVerify {
		logger.InfoContext(ctx, "re-checking transaction", "tx_id", current.TxID, "status", current.Kind)
		send(c.confirm(ctx, d.ID, current.TxID, current.Attempts, rb))
		return
	}

	if rb != nil {
		ok, actual, err := c.verifier.Check(ctx, *rb)
		switch {
		case err != nil:
			logger.DebugContext(ctx, "pre-submission readback failed", "error", err)
		case ok:
			logger.InfoContext(ctx, "value already on-chain; skipping submission", "value", actual)
			send(event{
				status: ir.LinkStatus{Kind: ir.StatusConfirmed, Note: ir.NoteAlreadyApplied},
				reason: ir.NoteAlreadyApplied,
				final:  true,
			})
			return
		}
	}

	call, err := callFor(d, addresses)
	if err != nil {
		send(failed(ir.FailureRejected, current, err.Error()))
		return
	}

	var readback submitter.Readback
	if rb != nil {
		readback = func(ctx context.Context) (bool, error) {
			ok, _, err := c.verifier.Check(ctx, *rb)
			return ok, err
		}
	}

	res, err := c.submitter.Submit(ctx, call, readback)
	if err != nil {
		send(submitFailure(err, current, res.Attempts))
		return
	}
	if res.AlreadyApplied {
		send(event{
			status: ir.LinkStatus{Kind: ir.StatusConfirmed, Attempts: res.Attempts, Note: ir.NoteAlreadyApplied},
			reason: "earlier attempt landed",
			final:  true,
		})
		return
	}

	send(event{
		status: ir.LinkStatus{Kind: ir.StatusSubmitted, TxID: res.TxID, Attempts: res.Attempts},
		reason: "broadcast",
	})
	send(c.confirm(ctx, d.ID, res.TxID, res.Attempts, rb))
}

// confirm waits for the outcome of txID on a context detached from run
// cancellation and maps it to the next status.
func (c *Controller) confirm(ctx context.Context, linkID, txID string, attempts int, rb *verifier.Readback) event {
	_, err := c.verifier.Confirm(context.WithoutCancel(ctx), linkID, txID, rb)

	st := ir.LinkStatus{TxID: txID, Attempts: attempts}
	var (
		rejected      *ir.RejectedError
		mismatch      *ir.VerificationError
		indeterminate *ir.IndeterminateError
	)
	switch {
	case err == nil:
		st.Kind = ir.StatusConfirmed
		return event{status: st, reason: "confirmed", final: true}
	case errors.As(err, &rejected):
		st.Kind = ir.StatusFailed
		st.Failure = rejected.Kind
		st.Reason = rejected.Reason
		if st.Reason == "" {
			st.Reason = err.Error()
		}
	case errors.As(err, &mismatch):
		st.Kind = ir.StatusFailed
		st.Failure = ir.FailureVerification
		st.Reason = err.Error()
	case errors.As(err, &indeterminate):
		st.Kind = ir.StatusIndeterminate
		st.Reason = err.Error()
	default:
		st.Kind = ir.StatusIndeterminate
		st.Reason = err.Error()
	}
	return event{status: st, reason: string(ir.CodeOf(err)), final: true}
}

// submitFailure maps a submitter error to the next status. A cancelled run
// leaves the link Pending.
func submitFailure(err error, current ir.LinkStatus, attempts int) event {
	var (
		rejected *ir.RejectedError
		budget   *ir.SubmissionError
	)
	switch {
	case errors.As(err, &rejected):
		ev := failed(ir.FailureRejected, current, rejected.Reason)
		ev.status.Attempts = attempts
		return ev
	case errors.As(err, &budget):
		ev := failed(ir.FailureSubmission, current, err.Error())
		ev.status.Attempts = attempts
		return ev
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return event{status: current, reason: "cancelled", final: true}
	default:
		ev := failed(ir.FailureSubmission, current, err.Error())
		ev.status.Attempts = attempts
		return ev
	}
}

func failed(kind ir.FailureKind, current ir.LinkStatus, reason string) event {
	return event{
		status: ir.LinkStatus{Kind: ir.StatusFailed, TxID: current.TxID, Failure: kind, Reason: reason},
		reason: string(kind),
		final:  true,
	}
}

func depsConfirmed(g *resolver.Graph, state *ir.RunState, i int) bool {
	for _, d := range g.Deps(i) {
		if state.Entries[d].Status.Kind != ir.StatusConfirmed {
			return false
		}
	}
	return true
}

// updateBlocked sets BlockedBy on every Pending link to the failed or
// indeterminate links upstream of it, and clears it elsewhere. It reports
// whether anything changed.
func (c *Controller) updateBlocked(g *resolver.Graph, state *ir.RunState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for i := range state.Entries {
		var blockers []string
		if state.Entries[i].Status.Kind == ir.StatusPending {
			blockers = blockersOf(g, state, i)
		}
		if !slices.Equal(blockers, state.Entries[i].BlockedBy) {
			state.Entries[i].BlockedBy = blockers
			changed = true
		}
	}
	return changed
}

// blockersOf lists the Failed or Indeterminate links upstream of i.
func blockersOf(g *resolver.Graph, state *ir.RunState, i int) []string {
	var ids []string
	for _, n := range g.TransitiveDeps(i) {
		switch state.Entries[n].Status.Kind {
		case ir.StatusFailed, ir.StatusIndeterminate:
			ids = append(ids, state.Entries[n].Descriptor.ID)
		}
	}
	return ids
}

func (c *Controller) track(state *ir.RunState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.live[state.RunID]; ok {
		return fmt.Errorf("%s: %w", state.RunID, ErrRunActive)
	}
	c.live[state.RunID] = state
	return nil
}

func (c *Controller) untrack(runID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, runID)
}
