package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to StatusKind
		want     bool
	}{
		{StatusPending, StatusSubmitted, true},
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusIndeterminate, false},
		{StatusSubmitted, StatusConfirmed, true},
		{StatusSubmitted, StatusIndeterminate, true},
		{StatusSubmitted, StatusPending, false},
		{StatusIndeterminate, StatusConfirmed, true},
		{StatusConfirmed, StatusPending, false},
		{StatusConfirmed, StatusSubmitted, false},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusSubmitted, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestFailureRetryable(t *testing.T) {
	assert.True(t, FailureRejected.Retryable())
	assert.True(t, FailureDropped.Retryable())
	assert.True(t, FailureSubmission.Retryable())
	assert.False(t, FailureVerification.Retryable())
}

func TestLinkStatusString(t *testing.T) {
	assert.Equal(t, "pending", Pending().String())
	assert.Equal(t, "submitted(0xabc)", LinkStatus{Kind: StatusSubmitted, TxID: "0xabc"}.String())
	assert.Equal(t, "failed(rejected: not admin)",
		LinkStatus{Kind: StatusFailed, Failure: FailureRejected, Reason: "not admin"}.String())
	assert.Equal(t, "confirmed(already-applied)", LinkStatus{Kind: StatusConfirmed, Note: NoteAlreadyApplied}.String())
}

func TestRunStateSettled(t *testing.T) {
	s := &RunState{Entries: []Entry{
		{Status: LinkStatus{Kind: StatusConfirmed}},
		{Status: LinkStatus{Kind: StatusFailed}},
	}}
	assert.True(t, s.Settled())
	assert.False(t, s.AllConfirmed())

	s.Entries = append(s.Entries, Entry{Status: Pending()})
	assert.False(t, s.Settled())
}

func TestRunStateCloneIsDeep(t *testing.T) {
	s := &RunState{
		RunID:     "r1",
		Addresses: map[string]string{"a": "SP1.a"},
		Entries:   []Entry{{Descriptor: LinkDescriptor{ID: "x"}, BlockedBy: []string{"y"}}},
	}

	c := s.Clone()
	c.Addresses["a"] = "changed"
	c.Entries[0].Status.Kind = StatusConfirmed
	c.Entries[0].BlockedBy[0] = "z"

	assert.Equal(t, "SP1.a", s.Addresses["a"])
	assert.Equal(t, StatusKind(""), s.Entries[0].Status.Kind)
	assert.Equal(t, "y", s.Entries[0].BlockedBy[0])
}

func TestErrorHelpers(t *testing.T) {
	cycle := fmt.Errorf("resolve: %w", &CycleError{Contracts: []string{"a", "b"}, Links: []string{"x", "y", "x"}})
	config := &ConfigurationError{Message: "bad", Unresolved: []string{"ghost"}}
	reject := &RejectedError{LinkID: "x", Kind: FailureReverted, TxID: "0x1"}

	assert.True(t, IsCycleError(cycle))
	assert.True(t, IsPreflight(cycle))
	assert.True(t, IsPreflight(config))
	assert.False(t, IsPreflight(reject))
	assert.True(t, IsRejected(reject))
	assert.Equal(t, ErrCodeCycle, CodeOf(cycle))
	assert.Equal(t, ErrCodeRejected, CodeOf(reject))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("other")))
	assert.Contains(t, cycle.Error(), "a, b")
	assert.Contains(t, config.Error(), "ghost")
}
