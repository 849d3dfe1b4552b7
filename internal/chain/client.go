// Package chain defines the chain client contract linkctl depends on.
//
// The client is an injected collaborator: linkctl never manages keys,
// nonces or fees. Implementations live in subpackages (gateway for a real
// signing gateway, memchain for an in-memory simulation).
package chain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TxStatus is the chain-reported state of a submitted transaction.
type TxStatus string

const (
	TxPending  TxStatus = "pending"
	TxSuccess  TxStatus = "success"
	TxReverted TxStatus = "reverted"
	TxDropped  TxStatus = "dropped"
)

// Terminal reports whether the status is final.
func (s TxStatus) Terminal() bool {
	return s == TxSuccess || s == TxReverted || s == TxDropped
}

// Query is a read-only function call.
type Query struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// String renders the query as function(args).
func (q Query) String() string {
	return fmt.Sprintf("%s%v", q.Function, q.Args)
}

// TxResult carries the status of a transaction plus optional detail such as
// the revert reason.
type TxResult struct {
	Status TxStatus `json:"status"`
	Detail string   `json:"detail,omitempty"`
}

// Client is the chain collaborator.
//
// contract is always a resolved principal ("SP….name"); args are Clarity
// literals (principals rendered with a leading quote).
type Client interface {
	// CallPublicFunction broadcasts a signed contract call and returns its tx id.
	CallPublicFunction(ctx context.Context, contract, function string, args []string) (string, error)

	// ReadOnlyCall evaluates a read-only function and returns its Clarity value.
	ReadOnlyCall(ctx context.Context, contract string, query Query) (string, error)

	// TxStatus reports the status of a transaction.
	TxStatus(ctx context.Context, txID string) (TxResult, error)
}

// ErrorKind classifies client failures.
type ErrorKind string

const (
	// Transient kinds: safe to retry after backoff.
	KindTimeout       ErrorKind = "timeout"
	KindUnavailable   ErrorKind = "unavailable"
	KindNonceConflict ErrorKind = "nonce_conflict"
	KindRateLimited   ErrorKind = "rate_limited"

	// Permanent kinds: retrying cannot help.
	KindRejected  ErrorKind = "rejected"
	KindMalformed ErrorKind = "malformed"
	KindNotFound  ErrorKind = "not_found"
)

// Error is a classified client failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chain %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("chain %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf creates a classified error.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the classification of err. Unclassified network errors
// and deadline expiry map to KindTimeout/KindUnavailable; anything else
// unclassified maps to KindRejected so it is never retried blindly.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindUnavailable
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return KindUnavailable
	}
	return KindRejected
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnavailable, KindNonceConflict, KindRateLimited:
		return true
	}
	return false
}

// IsAmbiguous reports whether a failed broadcast may still have landed
// on-chain (the request may have reached the node before the failure).
func IsAmbiguous(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnavailable:
		return true
	}
	return false
}
