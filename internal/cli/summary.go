package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// LinkResult is the JSON view of one entry.
type LinkResult struct {
	ID        string         `json:"id"`
	Contract  string         `json:"contract"`
	Function  string         `json:"function"`
	Status    ir.StatusKind  `json:"status"`
	TxID      string         `json:"tx_id,omitempty"`
	Failure   ir.FailureKind `json:"failure,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Note      string         `json:"note,omitempty"`
	Attempts  int            `json:"attempts,omitempty"`
	BlockedBy []string       `json:"blocked_by,omitempty"`
}

// RunResult is the JSON view of a finished run or resume.
type RunResult struct {
	RunID          string                `json:"run_id"`
	DescriptorHash string                `json:"descriptor_hash"`
	Success        bool                  `json:"success"`
	Interrupted    bool                  `json:"interrupted,omitempty"`
	Transactions   int                   `json:"transactions"`
	Counts         map[ir.StatusKind]int `json:"counts"`
	Unconfirmed    []string              `json:"unconfirmed,omitempty"`
	Archived       bool                  `json:"archived"`
	ArchiveError   string                `json:"archive_error,omitempty"`
	Links          []LinkResult          `json:"links"`
}

// StatusResult is the JSON view of a stored or live run.
type StatusResult struct {
	RunID          string                `json:"run_id"`
	DescriptorHash string                `json:"descriptor_hash"`
	Seq            int64                 `json:"seq"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Archived       bool                  `json:"archived"`
	Counts         map[ir.StatusKind]int `json:"counts"`
	Links          []LinkResult          `json:"links"`
	History        []ir.Transition       `json:"history,omitempty"`
}

func linkResults(state *ir.RunState) []LinkResult {
	out := make([]LinkResult, len(state.Entries))
	for i, e := range state.Entries {
		out[i] = LinkResult{
			ID:        e.Descriptor.ID,
			Contract:  e.Descriptor.Contract,
			Function:  e.Descriptor.Function,
			Status:    e.Status.Kind,
			TxID:      e.Status.TxID,
			Failure:   e.Status.Failure,
			Reason:    e.Status.Reason,
			Note:      e.Status.Note,
			Attempts:  e.Status.Attempts,
			BlockedBy: e.BlockedBy,
		}
	}
	return out
}

func newRunResult(r *orchestrator.Report) RunResult {
	res := RunResult{
		RunID:          r.RunID,
		DescriptorHash: r.State.DescriptorHash,
		Success:        r.Success,
		Interrupted:    r.Interrupted,
		Transactions:   r.Transactions,
		Counts:         r.Counts,
		Unconfirmed:    r.Unconfirmed,
		Archived:       r.State.Archived,
		Links:          linkResults(r.State),
	}
	if r.ArchiveErr != nil {
		res.ArchiveError = r.ArchiveErr.Error()
	}
	return res
}

func newStatusResult(state *ir.RunState, history []ir.Transition) StatusResult {
	return StatusResult{
		RunID:          state.RunID,
		DescriptorHash: state.DescriptorHash,
		Seq:            state.Seq,
		CreatedAt:      state.CreatedAt,
		UpdatedAt:      state.UpdatedAt,
		Archived:       state.Archived,
		Counts:         state.Counts(),
		Links:          linkResults(state),
		History:        history,
	}
}

// countOrder fixes the order of the tally line.
var countOrder = []ir.StatusKind{
	ir.StatusConfirmed,
	ir.StatusSubmitted,
	ir.StatusIndeterminate,
	ir.StatusFailed,
	ir.StatusPending,
}

func symbol(k ir.StatusKind) string {
	switch k {
	case ir.StatusConfirmed:
		return "✓"
	case ir.StatusFailed:
		return "✗"
	case ir.StatusIndeterminate:
		return "?"
	case ir.StatusSubmitted:
		return "~"
	}
	return "·"
}

func detail(e ir.Entry) string {
	s := e.Status
	switch s.Kind {
	case ir.StatusConfirmed:
		if s.Note != "" {
			return s.Note
		}
		return s.TxID
	case ir.StatusSubmitted:
		return s.TxID
	case ir.StatusIndeterminate:
		if s.Reason != "" {
			return fmt.Sprintf("%s (%s)", s.TxID, s.Reason)
		}
		return s.TxID
	case ir.StatusFailed:
		msg := string(s.Failure)
		if s.Reason != "" {
			msg += ": " + s.Reason
		}
		if s.TxID != "" {
			msg += " (tx " + s.TxID + ")"
		}
		return msg
	}
	if len(e.BlockedBy) > 0 {
		return "blocked by " + strings.Join(e.BlockedBy, ", ")
	}
	return ""
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// writeEntries prints one aligned line per entry.
func writeEntries(w io.Writer, state *ir.RunState) {
	idWidth, statusWidth := 0, 0
	for _, e := range state.Entries {
		idWidth = max(idWidth, len(e.Descriptor.ID))
		statusWidth = max(statusWidth, len(e.Status.Kind))
	}
	for _, e := range state.Entries {
		line := fmt.Sprintf("  %s %-*s  %-*s  %s",
			symbol(e.Status.Kind), idWidth, e.Descriptor.ID, statusWidth, e.Status.Kind, detail(e))
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// tally renders "3 links: 2 confirmed, 1 failed".
func tally(state *ir.RunState) string {
	counts := state.Counts()
	var parts []string
	for _, k := range countOrder {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k))
		}
	}
	return plural(len(state.Entries), "link") + ": " + strings.Join(parts, ", ")
}

func header(state *ir.RunState) string {
	h := "Run " + state.RunID
	if state.Archived {
		h += " (archived)"
	}
	return h
}

// renderReport prints the text summary of a run or resume.
func renderReport(w io.Writer, r *orchestrator.Report) {
	fmt.Fprintln(w, header(r.State))
	writeEntries(w, r.State)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s; %s\n", tally(r.State), plural(r.Transactions, "transaction"))

	if r.ArchiveErr != nil {
		fmt.Fprintf(w, "! Archive upload failed: %v\n", r.ArchiveErr)
	}

	switch {
	case r.Success:
		fmt.Fprintf(w, "✓ All %s confirmed\n", plural(len(r.State.Entries), "link"))
	case r.Interrupted:
		fmt.Fprintf(w, "✗ Interrupted with %s not confirmed\n", plural(len(r.Unconfirmed), "link"))
		fmt.Fprintf(w, "  resume with: linkctl resume %s\n", r.RunID)
	default:
		fmt.Fprintf(w, "✗ %s not confirmed\n", plural(len(r.Unconfirmed), "link"))
		if retryable(r.State) {
			fmt.Fprintf(w, "  retry failed links with: linkctl resume %s --retry-failed\n", r.RunID)
		}
	}
}

// retryable reports whether --retry-failed would reset any entry.
func retryable(state *ir.RunState) bool {
	for _, e := range state.Entries {
		if e.Status.Kind == ir.StatusFailed && e.Status.Failure.Retryable() {
			return true
		}
	}
	return false
}

// renderState prints a stored run, with its transition history when
// history is non-nil.
func renderState(w io.Writer, state *ir.RunState, history []ir.Transition) {
	fmt.Fprintln(w, header(state))
	fmt.Fprintf(w, "Descriptors: %s\n", state.DescriptorHash)
	fmt.Fprintf(w, "Created:     %s\n", state.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:     %s\n", state.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintln(w)
	writeEntries(w, state)
	fmt.Fprintln(w)
	fmt.Fprintln(w, tally(state))

	if history == nil {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "History:")
	idWidth := 0
	for _, tr := range history {
		idWidth = max(idWidth, len(tr.LinkID))
	}
	for _, tr := range history {
		line := fmt.Sprintf("  %3d  %-*s  %s → %s", tr.Seq, idWidth, tr.LinkID, tr.From, tr.To)
		if tr.TxID != "" {
			line += "  " + tr.TxID
		}
		if tr.Reason != "" {
			line += "  (" + tr.Reason + ")"
		}
		fmt.Fprintln(w, line)
	}
}

// renderRuns prints the run listing.
func renderRuns(w io.Writer, runs []ir.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	idWidth := len("RUN")
	for _, r := range runs {
		idWidth = max(idWidth, len(r.RunID))
	}
	fmt.Fprintf(w, "%-*s  %-9s  %-8s  %s\n", idWidth, "RUN", "CONFIRMED", "ARCHIVED", "UPDATED")
	for _, r := range runs {
		archived := "no"
		if r.Archived {
			archived = "yes"
		}
		fmt.Fprintf(w, "%-*s  %-9s  %-8s  %s\n", idWidth, r.RunID,
			fmt.Sprintf("%d/%d", r.Confirmed, r.Links), archived, r.UpdatedAt.UTC().Format(time.RFC3339))
	}
}
