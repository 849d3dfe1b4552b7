package submitter

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds the retry loop.
type Policy struct {
	// MaxAttempts is the total number of broadcasts tried, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff caps the delay before jitter is applied. Zero keeps the
	// library default of one minute.
	MaxBackoff time.Duration
	// Multiplier grows the delay between consecutive retries.
	Multiplier float64
	// Jitter spreads each delay uniformly by ±Jitter (0 disables, max 1).
	Jitter float64
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
		Jitter:         0.2,
	}
}

// Validate checks the policy for nonsensical values.
func (p Policy) Validate() error {
	switch {
	case p.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", p.MaxAttempts)
	case p.InitialBackoff < 0 || p.MaxBackoff < 0:
		return fmt.Errorf("backoff durations must not be negative")
	case p.Multiplier < 1:
		return fmt.Errorf("backoff multiplier must be >= 1, got %g", p.Multiplier)
	case p.Jitter < 0 || p.Jitter > 1:
		return fmt.Errorf("jitter must be within [0, 1], got %g", p.Jitter)
	}
	return nil
}

// NewBackOff returns a fresh exponential schedule for one submission.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.Multiplier = p.Multiplier
	if p.MaxBackoff > 0 {
		b.MaxInterval = p.MaxBackoff
	}
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}
