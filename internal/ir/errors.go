package ir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes linkctl errors for output and exit-code mapping.
type ErrorCode string

const (
	// ErrCodeCycle: the descriptor graph contains a cycle (pre-flight, fatal).
	ErrCodeCycle ErrorCode = "CYCLE"

	// ErrCodeConfiguration: unresolved reference or invalid descriptor set (pre-flight, fatal).
	ErrCodeConfiguration ErrorCode = "CONFIGURATION"

	// ErrCodeSubmission: transient failures exhausted the retry budget.
	ErrCodeSubmission ErrorCode = "SUBMISSION"

	// ErrCodeRejected: the call was refused, reverted or dropped.
	ErrCodeRejected ErrorCode = "REJECTED"

	// ErrCodeVerification: the chain accepted the call but the readback disagrees.
	ErrCodeVerification ErrorCode = "VERIFICATION"

	// ErrCodeIndeterminate: no terminal outcome was observed in time.
	ErrCodeIndeterminate ErrorCode = "INDETERMINATE"
)

// CycleError reports descriptors whose dependencies form a cycle.
type CycleError struct {
	// Contracts are the target contracts involved, sorted.
	Contracts []string
	// Links are the descriptor IDs involved, in cycle order.
	Links []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: dependency cycle between contracts [%s] (links: %s)",
		ErrCodeCycle, strings.Join(e.Contracts, ", "), strings.Join(e.Links, " → "))
}

// ConfigurationError reports unresolved names or invalid descriptors.
type ConfigurationError struct {
	Message string
	// Unresolved lists contract names the address book could not resolve.
	Unresolved []string
	// Problems lists individual validation failures.
	Problems []string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", ErrCodeConfiguration, e.Message)
	if len(e.Unresolved) > 0 {
		fmt.Fprintf(&b, " (unresolved: %s)", strings.Join(e.Unresolved, ", "))
	}
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p)
	}
	return b.String()
}

// SubmissionError is returned when transient failures exhaust the retry budget.
type SubmissionError struct {
	LinkID   string
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %s: gave up after %d attempts: %v", ErrCodeSubmission, e.LinkID, e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RejectedError is a permanent per-link failure: the call was refused before
// inclusion, or included and reverted, or dropped.
type RejectedError struct {
	LinkID string
	TxID   string
	Kind   FailureKind
	Reason string
	Err    error
}

func (e *RejectedError) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", ErrCodeRejected, e.LinkID, e.Kind)
	if e.TxID != "" {
		msg += " (tx " + e.TxID + ")"
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RejectedError) Unwrap() error { return e.Err }

// VerificationError means the transaction succeeded on-chain but the
// configured value read back differs from the intended one.
type VerificationError struct {
	LinkID   string
	TxID     string
	Query    string
	Expected string
	Actual   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s: %s returned %q, expected %q (tx %s)",
		ErrCodeVerification, e.LinkID, e.Query, e.Actual, e.Expected, e.TxID)
}

// IndeterminateError means the outcome is unknown after bounded waiting.
// Callers must re-check before any resubmission.
type IndeterminateError struct {
	LinkID     string
	TxID       string
	LastStatus string
	Err        error
}

func (e *IndeterminateError) Error() string {
	msg := fmt.Sprintf("%s: %s: tx %s has no terminal outcome (last status %q)",
		ErrCodeIndeterminate, e.LinkID, e.TxID, e.LastStatus)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IndeterminateError) Unwrap() error { return e.Err }

// IsCycleError returns true if err wraps a CycleError.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// IsConfigurationError returns true if err wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsPreflight reports errors that abort a run before any transaction.
func IsPreflight(err error) bool {
	return IsCycleError(err) || IsConfigurationError(err)
}

// IsRejected returns true if err wraps a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsIndeterminate returns true if err wraps an IndeterminateError.
func IsIndeterminate(err error) bool {
	var ie *IndeterminateError
	return errors.As(err, &ie)
}

// CodeOf returns the taxonomy code of err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var (
		cycle   *CycleError
		config  *ConfigurationError
		submit  *SubmissionError
		reject  *RejectedError
		verify  *VerificationError
		indeter *IndeterminateError
	)
	switch {
	case errors.As(err, &cycle):
		return ErrCodeCycle
	case errors.As(err, &config):
		return ErrCodeConfiguration
	case errors.As(err, &submit):
		return ErrCodeSubmission
	case errors.As(err, &reject):
		return ErrCodeRejected
	case errors.As(err, &verify):
		return ErrCodeVerification
	case errors.As(err, &indeter):
		return ErrCodeIndeterminate
	}
	return ""
}
