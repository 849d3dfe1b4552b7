// Package verifier waits for submitted transactions to reach a terminal
// status and asserts their effect with a read-only call.
//
// Polling is bounded: when no terminal outcome (or no successful readback)
// is observed within Timeout the result is IndeterminateError, and callers
// must re-check rather than resubmit.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/ir"
)

const instrumentation = "github.com/roach88/linkctl/internal/verifier"

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 5 * time.Minute
)

// Readback is the read-only call that proves a link took effect.
type Readback struct {
	Contract string
	Query    chain.Query
	Expected string
}

// String renders the readback as contract::function(args).
func (r Readback) String() string {
	return r.Contract + "::" + r.Query.String()
}

// Result describes a confirmed transaction.
type Result struct {
	Status chain.TxStatus
	// Actual is the value read back; empty when the readback was skipped.
	Actual string
	Polls  int
}

// Verifier polls transaction status and performs readbacks.
type Verifier struct {
	client   chain.Client
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	tracer   trace.Tracer
	outcomes metric.Int64Counter
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(v *Verifier) { v.interval = d }
}

// WithTimeout bounds the total wait per transaction.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) { v.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// New creates a verifier for client.
func New(client chain.Client, opts ...Option) *Verifier {
	v := &Verifier{
		client:   client,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(v)
	}

	counter, err := otel.Meter(instrumentation).Int64Counter("linkctl.verifier.outcomes",
		metric.WithDescription("Verification outcomes by kind"),
		metric.WithUnit("{transaction}"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	v.outcomes = counter
	return v
}

// Check performs the readback once. It reports whether the chain already
// holds the expected value, along with the value observed.
func (v *Verifier) Check(ctx context.Context, rb Readback) (bool, string, error) {
	actual, err := v.client.ReadOnlyCall(ctx, rb.Contract, rb.Query)
	if err != nil {
		return false, "", fmt.Errorf("readback %s: %w", rb, err)
	}
	return chain.ValuesEqual(actual, rb.Expected), actual, nil
}

// Confirm polls txID until it is terminal and, on success, asserts rb.
// A nil rb skips the readback.
//
// Errors: *ir.RejectedError (reverted or dropped), *ir.VerificationError
// (success but the readback disagrees), *ir.IndeterminateError (no
// terminal outcome or readback within the timeout).
func (v *Verifier) Confirm(ctx context.Context, linkID, txID string, rb *Readback) (Result, error) {
	ctx, span := v.tracer.Start(ctx, "verifier.Confirm", trace.WithAttributes(
		attribute.String("linkctl.link", linkID),
		attribute.String("linkctl.tx_id", txID),
	))
	defer span.End()

	res, err := v.confirm(ctx, linkID, txID, rb)

	outcome := "confirmed"
	switch {
	case err == nil:
	case ir.IsRejected(err):
		outcome = "rejected"
	case ir.IsIndeterminate(err):
		outcome = "indeterminate"
	default:
		outcome = "verification"
	}
	v.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("linkctl.outcome", outcome), attribute.Int("linkctl.polls", res.Polls))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return res, err
}

// errNotFinal keeps the status poll going while a transaction is pending.
var errNotFinal = errors.New("transaction not final")

func (v *Verifier) confirm(ctx context.Context, linkID, txID string, rb *Readback) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	logger := v.logger.With("link", linkID, "tx_id", txID)
	res := Result{}
	lastStatus := ""
	var lastErr error

	indeterminate := func(cause error) (Result, error) {
		if cause == nil {
			cause = ctx.Err()
		}
		if cause == nil {
			cause = context.DeadlineExceeded
		}
		return res, &ir.IndeterminateError{LinkID: linkID, TxID: txID, LastStatus: lastStatus, Err: cause}
	}

	poll := func() (chain.TxResult, error) {
		res.Polls++
		status, err := v.client.TxStatus(ctx, txID)
		if err != nil {
			// not-found right after broadcast only means the node has not indexed the tx yet
			if ctx.Err() == nil {
				lastErr = err
			}
			logger.DebugContext(ctx, "status poll failed", "poll", res.Polls, "error", err)
			return status, err
		}
		if !status.Status.Terminal() {
			lastStatus = string(status.Status)
			lastErr = nil
			return status, errNotFinal
		}
		return status, nil
	}

	status, err := backoff.Retry(ctx, poll, v.polling()...)
	if err != nil {
		return indeterminate(lastErr)
	}

	res.Status = status.Status
	switch status.Status {
	case chain.TxReverted, chain.TxDropped:
		kind := ir.FailureReverted
		if status.Status == chain.TxDropped {
			kind = ir.FailureDropped
		}
		return res, &ir.RejectedError{LinkID: linkID, TxID: txID, Kind: kind, Reason: status.Detail}
	}

	lastStatus = string(chain.TxSuccess)
	if rb == nil {
		logger.DebugContext(ctx, "confirmed without readback")
		return res, nil
	}
	var readErr error
	res, readErr = v.assert(ctx, linkID, txID, *rb, res)
	if readErr != nil && !isAssertion(readErr) {
		return indeterminate(readErr)
	}
	return res, readErr
}

// polling retries at a fixed interval until the confirmation window
// closes.
func (v *Verifier) polling() []backoff.RetryOption {
	return []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(v.interval)),
		backoff.WithMaxElapsedTime(v.timeout),
	}
}

func isAssertion(err error) bool {
	var ve *ir.VerificationError
	return errors.As(err, &ve)
}

// assert retries the readback within the remaining window until it
// succeeds, then compares. A non-assertion error is the last readback
// failure once the window closed.
func (v *Verifier) assert(ctx context.Context, linkID, txID string, rb Readback, res Result) (Result, error) {
	type observed struct {
		ok     bool
		actual string
	}
	var lastErr error
	read := func() (observed, error) {
		ok, actual, err := v.Check(ctx, rb)
		if err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
			v.logger.DebugContext(ctx, "readback failed", "link", linkID, "error", err)
			return observed{}, err
		}
		return observed{ok: ok, actual: actual}, nil
	}

	got, err := backoff.Retry(ctx, read, v.polling()...)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return res, lastErr
	}
	res.Actual = got.actual
	if got.ok {
		return res, nil
	}
	return res, &ir.VerificationError{
		LinkID:   linkID,
		TxID:     txID,
		Query:    rb.String(),
		Expected: rb.Expected,
		Actual:   got.actual,
	}
}
