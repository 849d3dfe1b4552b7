package orchestrator

import "github.com/roach88/linkctl/internal/ir"

// Report summarizes a run after StartRun or ResumeRun returns.
type Report struct {
	RunID string

	// State is the final snapshot.
	State *ir.RunState

	Counts map[ir.StatusKind]int

	// Unconfirmed lists every link that is not Confirmed, in run order.
	Unconfirmed []string

	// Blocked lists Pending links held back by a failed or indeterminate
	// upstream link.
	Blocked []string

	// Transactions counts broadcasts issued by this invocation.
	Transactions int

	// Interrupted is set when the context was cancelled before the run
	// settled.
	Interrupted bool

	// Success is true only when every link is Confirmed.
	Success bool

	// ArchiveErr is the archive upload failure, if any. The run itself is
	// persisted regardless.
	ArchiveErr error
}

func newReport(state *ir.RunState, transactions int, interrupted bool) *Report {
	r := &Report{
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
		if len(e.BlockedBy) > 0 {
			r.Blocked = append(r.Blocked, e.Descriptor.ID)
		}
	}
	return r
}
