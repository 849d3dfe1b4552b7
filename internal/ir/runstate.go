package ir

import (
	"errors"
	"time"
)

var (
	// ErrRunNotFound is returned by run stores when no snapshot exists.
	ErrRunNotFound = errors.New("run not found")

	// ErrStaleSnapshot is returned by run stores when a save carries a Seq
	// that is not newer than the stored one.
	ErrStaleSnapshot = errors.New("stale run snapshot")
)

// Entry pairs a descriptor with its status inside a run.
type Entry struct {
	Descriptor LinkDescriptor `json:"descriptor"`
	Status     LinkStatus     `json:"status"`

	// BlockedBy lists failed or indeterminate upstream links that keep this
	// entry from being submitted. Empty when the entry is not blocked.
	BlockedBy []string `json:"blocked_by,omitempty"`
}

// Transition records one status change for the run history.
type Transition struct {
	Seq    int64      `json:"seq"`
	LinkID string     `json:"link_id"`
	From   StatusKind `json:"from"`
	To     StatusKind `json:"to"`
	TxID   string     `json:"tx_id,omitempty"`
	Reason string     `json:"reason,omitempty"`
	At     time.Time  `json:"at"`
}

// RunState is the persisted progress of one linking run.
//
// Entries are kept in resolver order. Seq increases on every save so stores
// can refuse stale snapshots.
type RunState struct {
	RunID          string            `json:"run_id"`
	DescriptorHash string            `json:"descriptor_hash"`
	Addresses      map[string]string `json:"addresses"`
	Entries        []Entry           `json:"entries"`
	History        []Transition      `json:"history,omitempty"`
	Seq            int64             `json:"seq"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Archived       bool              `json:"archived,omitempty"`
	ArchivedAt     *time.Time        `json:"archived_at,omitempty"`
}

// Descriptors returns the descriptors of the run in stored order.
func (s *RunState) Descriptors() []LinkDescriptor {
	out := make([]LinkDescriptor, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Descriptor
	}
	return out
}

// Find returns the index of the entry with the given link ID, or -1.
func (s *RunState) Find(linkID string) int {
	for i, e := range s.Entries {
		if e.Descriptor.ID == linkID {
			return i
		}
	}
	return -1
}

// AllConfirmed reports whether every entry is Confirmed.
func (s *RunState) AllConfirmed() bool {
	for _, e := range s.Entries {
		if e.Status.Kind != StatusConfirmed {
			return false
		}
	}
	return true
}

// Settled reports whether every entry is Confirmed or Failed, at which
// point the run is archived.
func (s *RunState) Settled() bool {
	for _, e := range s.Entries {
		if e.Status.Kind != StatusConfirmed && e.Status.Kind != StatusFailed {
			return false
		}
	}
	return true
}

// Counts tallies entries by status kind.
func (s *RunState) Counts() map[StatusKind]int {
	counts := make(map[StatusKind]int)
	for _, e := range s.Entries {
		counts[e.Status.Kind]++
	}
	return counts
}

// Clone returns a deep copy safe to hand out as a read-only view.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.Addresses = make(map[string]string, len(s.Addresses))
	for k, v := range s.Addresses {
		c.Addresses[k] = v
	}
	c.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		c.Entries[i] = Entry{
			Descriptor: e.Descriptor.Clone(),
			Status:     e.Status,
			BlockedBy:  append([]string(nil), e.BlockedBy...),
		}
	}
	c.History = append([]Transition(nil), s.History...)
	if s.ArchivedAt != nil {
		t := *s.ArchivedAt
		c.ArchivedAt = &t
	}
	return &c
}

// RunSummary is the listing view of a persisted run.
type RunSummary struct {
	RunID          string    `json:"run_id"`
	DescriptorHash string    `json:"descriptor_hash"`
	Links          int       `json:"links"`
	Confirmed      int       `json:"confirmed"`
	Archived       bool      `json:"archived"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summarize builds the listing view of a run.
func Summarize(s *RunState) RunSummary {
	return RunSummary{
		RunID:          s.RunID,
		DescriptorHash: s.DescriptorHash,
		Links:          len(s.Entries),
		Confirmed:      s.Counts()[StatusConfirmed],
		Archived:       s.Archived,
		UpdatedAt:      s.UpdatedAt,
	}
}
