package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
	"github.com/roach88/linkctl/internal/testutil"
)

const linkRewardRate = "staking.set-reward-rate"

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func entry(id string, status ir.LinkStatus, blockedBy ...string) ir.Entry {
	contract, function, _ := strings.Cut(id, ".")
	return ir.Entry{
		Descriptor: ir.LinkDescriptor{ID: id, Contract: contract, Function: function},
		Status:     status,
		BlockedBy:  blockedBy,
	}
}

func confirmed(txID string) ir.LinkStatus {
	return ir.LinkStatus{Kind: ir.StatusConfirmed, TxID: txID}
}

func reportOf(state *ir.RunState, transactions int, interrupted bool) *orchestrator.Report {
	r := &orchestrator.Report{
		RunID:        state.RunID,
		State:        state,
		Counts:       state.Counts(),
		Transactions: transactions,
		Interrupted:  interrupted,
		Success:      state.AllConfirmed(),
	}
	for _, e := range state.Entries {
		if e.Status.Kind != ir.StatusConfirmed {
			r.Unconfirmed = append(r.Unconfirmed, e.Descriptor.ID)
		}
	}
	return r
}

func TestRenderReport_Success(t *testing.T) {
	state := &ir.RunState{
		RunID:    "run-2",
		Archived: true,
		Entries: []ir.Entry{
			entry(testutil.LinkGovernance, confirmed("0x01")),
			entry(testutil.LinkNFTContract, confirmed("0x02")),
			entry(testutil.LinkRewardToken, ir.LinkStatus{Kind: ir.StatusConfirmed, Note: ir.NoteAlreadyApplied}),
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, reportOf(state, 2, false))
	newGolden(t).Assert(t, "report_success", buf.Bytes())
}

func TestRenderReport_RejectedAndBlocked(t *testing.T) {
	state := &ir.RunState{
		RunID: "run-7",
		Entries: []ir.Entry{
			entry(testutil.LinkGovernance, ir.LinkStatus{
				Kind:    ir.StatusFailed,
				Failure: ir.FailureRejected,
				Reason:  "chain rejected: not contract owner",
			}),
			entry(testutil.LinkNFTContract, ir.Pending(), testutil.LinkGovernance),
			entry(testutil.LinkRewardToken, confirmed("0x0a")),
			entry(linkRewardRate, ir.Pending(), testutil.LinkGovernance),
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, reportOf(state, 1, false))
	newGolden(t).Assert(t, "report_rejected", buf.Bytes())
}

func TestRenderReport_InterruptedWithArchiveError(t *testing.T) {
	state := &ir.RunState{
		RunID: "run-3",
		Entries: []ir.Entry{
			entry(testutil.LinkGovernance, confirmed("0x01")),
			entry(testutil.LinkNFTContract, ir.LinkStatus{Kind: ir.StatusSubmitted, TxID: "0x02"}),
			entry(testutil.LinkRewardToken, ir.Pending()),
		},
	}
	r := reportOf(state, 2, true)
	r.ArchiveErr = errors.New("bucket link-runs: access denied")

	var buf bytes.Buffer
	renderReport(&buf, r)
	newGolden(t).Assert(t, "report_interrupted", buf.Bytes())
}

func TestRenderState_WithHistory(t *testing.T) {
	at := func(s int) time.Time { return testutil.Epoch.Add(time.Duration(s) * time.Second) }
	state := &ir.RunState{
		RunID:          "run-4",
		DescriptorHash: "3f2a9c",
		CreatedAt:      at(1),
		UpdatedAt:      at(6),
		Entries: []ir.Entry{
			entry(testutil.LinkGovernance, confirmed("0x01")),
			entry(testutil.LinkRewardToken, ir.LinkStatus{
				Kind:   ir.StatusIndeterminate,
				TxID:   "0x02",
				Reason: "no terminal status",
			}),
		},
	}
	history := []ir.Transition{
		{Seq: 1, LinkID: testutil.LinkGovernance, From: ir.StatusPending, To: ir.StatusSubmitted, TxID: "0x01", At: at(2)},
		{Seq: 2, LinkID: testutil.LinkRewardToken, From: ir.StatusPending, To: ir.StatusSubmitted, TxID: "0x02", At: at(3)},
		{Seq: 3, LinkID: testutil.LinkGovernance, From: ir.StatusSubmitted, To: ir.StatusConfirmed, TxID: "0x01", At: at(4)},
		{Seq: 4, LinkID: testutil.LinkRewardToken, From: ir.StatusSubmitted, To: ir.StatusIndeterminate, TxID: "0x02", Reason: "indeterminate", At: at(6)},
	}

	var buf bytes.Buffer
	renderState(&buf, state, history)
	newGolden(t).Assert(t, "state_history", buf.Bytes())
}

func TestRenderRuns(t *testing.T) {
	runs := []ir.RunSummary{
		{RunID: "0192f8c4-7d7a-7c3e-9b51-3f0e2a1b4c5d", Links: 4, Confirmed: 4, Archived: true, UpdatedAt: testutil.Epoch.Add(time.Minute)},
		{RunID: "run-2", Links: 3, Confirmed: 1, UpdatedAt: testutil.Epoch.Add(time.Hour)},
	}

	var buf bytes.Buffer
	renderRuns(&buf, runs)
	newGolden(t).Assert(t, "runs", buf.Bytes())
}

func TestRenderRuns_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderRuns(&buf, nil)
	if got := buf.String(); got != "No runs recorded\n" {
		t.Fatalf("renderRuns(nil) = %q", got)
	}
}
