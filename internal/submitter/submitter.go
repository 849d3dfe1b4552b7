package submitter

import (
	"context"
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
	"golang.org/x/time/rate"

	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/ir"
)

const instrumentation = "github.com/roach88/linkctl/internal/submitter"

// Call is one resolved configuration call.
type Call struct {
	LinkID   string
	Contract string   // resolved principal
	Function string
	Args     []string // wire-form Clarity literals
}

// Readback reports whether the intended effect is already on-chain.
type Readback func(ctx context.Context) (bool, error)

// Result describes a successful submission.
type Result struct {
	// TxID is empty when AlreadyApplied is set.
	TxID     string
	Attempts int
	// AlreadyApplied means a readback found the value on-chain after a failed
	// attempt, so no further broadcast happened.
	AlreadyApplied bool
}

// Submitter retries transient broadcast failures under a Policy.
type Submitter struct {
	client  chain.Client
	policy  Policy
	limiter *rate.Limiter
	logger  *slog.Logger

	tracer   trace.Tracer
	attempts metric.Int64Counter
}

// Option configures a Submitter.
type Option func(*Submitter)

// WithPolicy sets the retry policy.
func WithPolicy(p Policy) Option {
	return func(s *Submitter) { s.policy = p }
}

// WithRateLimit caps broadcasts per second across all links sharing the
// submitter. A zero or negative rate disables the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Submitter) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Submitter) { s.logger = l }
}

// New creates a submitter for client.
func New(client chain.Client, opts ...Option) *Submitter {
	s := &Submitter{
		client:  client,
		policy:  DefaultPolicy(),
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  slog.Default(),
		tracer:  otel.Tracer(instrumentation),
	}
	for _, opt := range opts {
		opt(s)
	}

	counter, err := otel.Meter(instrumentation).Int64Counter("linkctl.submitter.attempts",
		metric.WithDescription("Broadcast attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		counter = noop.Int64Counter{}
	}
	s.attempts = counter
	return s
}

// Submit broadcasts call, retrying transient failures.
//
// Errors: *ir.RejectedError for permanent failures, *ir.SubmissionError when
// the retry budget is exhausted, or the context error when cancelled between
// attempts.
func (s *Submitter) Submit(ctx context.Context, call Call, readback Readback) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "submitter.Submit", trace.WithAttributes(
		attribute.String("linkctl.link", call.LinkID),
		attribute.String("linkctl.contract", call.Contract),
		attribute.String("linkctl.function", call.Function),
	))
	defer span.End()

	logger := s.logger.With("link", call.LinkID)
	maxAttempts := max(s.policy.MaxAttempts, 1)

	var (
		attempts int
		lastErr  error
		rejected error
		waitErr  error
	)
	broadcast := func() (Result, error) {
		if attempts > 0 && chain.IsAmbiguous(lastErr) && s.landed(ctx, logger, readback, attempts) {
			return Result{Attempts: attempts, AlreadyApplied: true}, nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			waitErr = err
			return Result{}, backoff.Permanent(err)
		}

		attempts++
		txID, err := s.client.CallPublicFunction(context.WithoutCancel(ctx), call.Contract, call.Function, call.Args)
		if err == nil {
			s.record(ctx, "ok")
			return Result{TxID: txID, Attempts: attempts}, nil
		}

		lastErr = err
		if !chain.IsTransient(err) {
			s.record(ctx, "rejected")
			rejected = err
			return Result{}, backoff.Permanent(err)
		}
		s.record(ctx, "transient")
		logger.WarnContext(ctx, "transient broadcast failure",
			"attempt", attempts, "kind", chain.KindOf(err), "may_have_landed", chain.IsAmbiguous(err), "error", err)
		return Result{}, err
	}

	res, err := backoff.Retry(ctx, broadcast,
		backoff.WithBackOff(s.policy.NewBackOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(_ error, delay time.Duration) {
			logger.DebugContext(ctx, "backing off", "attempt", attempts+1, "delay", delay)
		}),
	)

	switch {
	case err == nil:
		if res.AlreadyApplied {
			span.SetAttributes(attribute.Bool("linkctl.already_applied", true))
			return res, nil
		}
		logger.DebugContext(ctx, "broadcast", "tx_id", res.TxID, "attempt", res.Attempts)
		span.SetAttributes(attribute.String("linkctl.tx_id", res.TxID), attribute.Int("linkctl.attempts", res.Attempts))
		return res, nil

	case rejected != nil:
		span.RecordError(rejected)
		span.SetStatus(codes.Error, "rejected")
		return Result{Attempts: attempts}, &ir.RejectedError{
			LinkID: call.LinkID,
			Kind:   ir.FailureRejected,
			Reason: rejected.Error(),
			Err:    rejected,
		}

	case waitErr != nil:
		return Result{Attempts: attempts}, fmt.Errorf("submit %s: %w", call.LinkID, waitErr)

	case ctx.Err() != nil && attempts < maxAttempts:
		return Result{Attempts: attempts}, fmt.Errorf("submit %s: %w", call.LinkID, ctx.Err())
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "retries exhausted")
	return Result{Attempts: attempts}, &ir.SubmissionError{
		LinkID:   call.LinkID,
		Attempts: attempts,
		Err:      lastErr,
	}
}

// landed runs the readback before retrying an attempt that may have
// reached the chain and reports whether it took effect. Read failures
// count as not landed.
func (s *Submitter) landed(ctx context.Context, logger *slog.Logger, readback Readback, attempts int) bool {
	if readback == nil {
		logger.WarnContext(ctx, "retrying without readback; a landed call may be set twice", "attempt", attempts+1)
		return false
	}
	applied, err := readback(ctx)
	switch {
	case err != nil:
		logger.DebugContext(ctx, "readback before retry failed", "error", err)
		return false
	case applied:
		logger.InfoContext(ctx, "earlier attempt landed; not rebroadcasting", "attempts", attempts)
		return true
	}
	return false
}

func (s *Submitter) record(ctx context.Context, outcome string) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
