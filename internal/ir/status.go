package ir

import (
	"fmt"
	"time"
)

// StatusKind is the lifecycle position of one link within a run.
type StatusKind string

const (
	StatusPending       StatusKind = "pending"
	StatusSubmitted     StatusKind = "submitted"
	StatusConfirmed     StatusKind = "confirmed"
	StatusFailed        StatusKind = "failed"
	StatusIndeterminate StatusKind = "indeterminate"
)

// FailureKind explains why a link ended Failed.
type FailureKind string

const (
	// FailureRejected: the node or contract refused the call (permanent).
	FailureRejected FailureKind = "rejected"
	// FailureReverted: the transaction was included but reverted.
	FailureReverted FailureKind = "reverted"
	// FailureDropped: the transaction was dropped or expired before inclusion.
	FailureDropped FailureKind = "dropped"
	// FailureSubmission: the retry budget ran out on transient errors.
	FailureSubmission FailureKind = "submission"
	// FailureVerification: the call succeeded but the readback disagrees.
	FailureVerification FailureKind = "verification"
)

// Retryable reports whether --retry-failed may reset a failure to Pending.
// Verification failures imply a logic mismatch and need operator review.
func (f FailureKind) Retryable() bool {
	return f != FailureVerification && f != ""
}

// NoteAlreadyApplied marks a link confirmed by readback without a transaction.
const NoteAlreadyApplied = "already-applied"

// LinkStatus is the status attached to a descriptor during a run.
type LinkStatus struct {
	Kind      StatusKind  `json:"kind"`
	TxID      string      `json:"tx_id,omitempty"`
	Failure   FailureKind `json:"failure,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	Attempts  int         `json:"attempts,omitempty"`
	Note      string      `json:"note,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Pending returns the initial status.
func Pending() LinkStatus {
	return LinkStatus{Kind: StatusPending}
}

// String renders the status in the Submitted(tx)/Failed(reason) form.
func (s LinkStatus) String() string {
	switch s.Kind {
	case StatusSubmitted, StatusIndeterminate:
		return fmt.Sprintf("%s(%s)", s.Kind, s.TxID)
	case StatusFailed:
		return fmt.Sprintf("%s(%s: %s)", s.Kind, s.Failure, s.Reason)
	case StatusConfirmed:
		if s.Note != "" {
			return fmt.Sprintf("%s(%s)", s.Kind, s.Note)
		}
	}
	return string(s.Kind)
}

// validTransitions lists the legal status changes.
var validTransitions = map[StatusKind][]StatusKind{
	StatusPending:       {StatusSubmitted, StatusConfirmed, StatusFailed},
	StatusSubmitted:     {StatusConfirmed, StatusFailed, StatusIndeterminate},
	StatusIndeterminate: {StatusConfirmed, StatusFailed, StatusIndeterminate},
	StatusFailed:        {StatusPending},
}

// CanTransition reports whether from -> to is a legal status change.
func CanTransition(from, to StatusKind) bool {
	for _, k := range validTransitions[from] {
		if k == to {
			return true
		}
	}
	return false
}
