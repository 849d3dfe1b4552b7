package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/linkctl/internal/ir"
)

// checkStep compares a step's outcome against its expectations and
// returns one message per mismatch.
func checkStep(e *Expect, sr StepResult) []string {
	if e.Error != "" {
		return checkError(e.Error, sr)
	}
	if sr.Err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", sr.Err)}
	}
	if sr.Report == nil {
		return []string{"no report returned"}
	}

	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	report := sr.Report
	if e.Success != nil && report.Success != *e.Success {
		fail("success: expected %t, got %t (unconfirmed: %s)",
			*e.Success, report.Success, strings.Join(report.Unconfirmed, ", "))
	}
	if e.Transactions != nil && report.Transactions != *e.Transactions {
		fail("transactions: expected %d, got %d", *e.Transactions, report.Transactions)
	}

	for _, id := range sortedKeys(e.Statuses) {
		got, ok := statusOf(report.State, id)
		if !ok {
			fail("status %s: link not in run", id)
			continue
		}
		if msg := matchStatus(e.Statuses[id], got); msg != "" {
			fail("status %s: %s", id, msg)
		}
	}

	for _, id := range sortedKeys(e.Notes) {
		got, ok := statusOf(report.State, id)
		if !ok {
			fail("note %s: link not in run", id)
			continue
		}
		if got.Note != e.Notes[id] {
			fail("note %s: expected %q, got %q", id, e.Notes[id], got.Note)
		}
	}

	if e.Blocked != nil {
		want := slices.Sorted(slices.Values(e.Blocked))
		got := slices.Sorted(slices.Values(report.Blocked))
		if !slices.Equal(want, got) {
			fail("blocked: expected %v, got %v", want, got)
		}
	}

	if e.Broadcasts != nil && !slices.Equal(e.Broadcasts, sr.Broadcasts) {
		fail("broadcasts: expected %v, got %v", e.Broadcasts, sr.Broadcasts)
	}

	failures = append(failures, checkPersisted(report.State, sr.Stored)...)
	return failures
}

// checkError expects a pre-flight failure with the given taxonomy code
// and no chain activity.
func checkError(code string, sr StepResult) []string {
	if sr.Err == nil {
		return []string{fmt.Sprintf("error: expected %s, got none", code)}
	}
	var failures []string
	if got := string(ir.CodeOf(sr.Err)); got != code {
		failures = append(failures, fmt.Sprintf("error: expected %s, got %q (%v)", code, got, sr.Err))
	}
	if len(sr.Broadcasts) > 0 {
		failures = append(failures, fmt.Sprintf("error: %d broadcast(s) before the run failed", len(sr.Broadcasts)))
	}
	return failures
}

// matchStatus compares "kind" or "kind/failure" against a status.
func matchStatus(want string, got ir.LinkStatus) string {
	kind, failure, _ := strings.Cut(want, "/")
	if string(got.Kind) != kind {
		return fmt.Sprintf("expected %s, got %s", want, got)
	}
	if failure != "" && string(got.Failure) != failure {
		return fmt.Sprintf("expected %s, got %s", want, got)
	}
	return ""
}

// checkPersisted reports links whose stored status differs from the
// returned report.
func checkPersisted(state, stored *ir.RunState) []string {
	if stored == nil {
		return []string{"run was not persisted"}
	}
	var failures []string
	for _, e := range state.Entries {
		st, ok := statusOf(stored, e.Descriptor.ID)
		if !ok {
			failures = append(failures, fmt.Sprintf("persisted: link %s missing", e.Descriptor.ID))
			continue
		}
		if st.Kind != e.Status.Kind {
			failures = append(failures, fmt.Sprintf("persisted: link %s is %s, report says %s",
				e.Descriptor.ID, st.Kind, e.Status.Kind))
		}
	}
	if stored.Archived != state.Archived {
		failures = append(failures, fmt.Sprintf("persisted: archived %t, report says %t", stored.Archived, state.Archived))
	}
	return failures
}

func statusOf(state *ir.RunState, id string) (ir.LinkStatus, bool) {
	if state == nil {
		return ir.LinkStatus{}, false
	}
	i := state.Find(id)
	if i < 0 {
		return ir.LinkStatus{}, false
	}
	return state.Entries[i].Status, true
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
