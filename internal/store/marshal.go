package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/linkctl/internal/ir"
)

// marshalSnapshot converts a RunState to canonical JSON TEXT for storage.
// Equal states always produce byte-identical rows.
func marshalSnapshot(state *ir.RunState) (string, error) {
	data, err := ir.MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalSnapshot parses a stored snapshot.
func unmarshalSnapshot(text string) (*ir.RunState, error) {
	var state ir.RunState
	if err := json.Unmarshal([]byte(text), &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
