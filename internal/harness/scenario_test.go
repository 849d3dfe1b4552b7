package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a temporary scenario file.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func stakingPath(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs("testdata/staking.yaml")
	require.NoError(t, err)
	return abs
}

func TestLoadScenario_ValidFile(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/rejected_then_retry.yaml")
	require.NoError(t, err)

	assert.Equal(t, "rejected_then_retry", s.Name)
	assert.Equal(t, filepath.Join("testdata", "staking.yaml"), s.Descriptors)
	require.Len(t, s.Steps, 3)

	first := s.Steps[0]
	assert.Equal(t, ActionRun, first.Action)
	require.Len(t, first.Faults, 1)
	assert.Equal(t, "not contract owner", first.Faults[0].Reject)
	require.NotNil(t, first.Expect)
	require.NotNil(t, first.Expect.Transactions)
	assert.Equal(t, 1, *first.Expect.Transactions)
	assert.Equal(t, "failed/rejected", first.Expect.Statuses["nft-collection.set-governance"])

	assert.True(t, s.Steps[1].Heal)
	assert.True(t, s.Steps[2].RetryFailed)
}

func TestLoadScenario_AbsoluteDescriptorsKept(t *testing.T) {
	path := writeScenario(t, `
name: abs
description: "absolute descriptor path"
descriptors: `+stakingPath(t)+`
steps:
  - action: run
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, stakingPath(t), s.Descriptors)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "misspelled field"
descriptors: `+stakingPath(t)+`
step:
  - action: run
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	staking := stakingPath(t)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: "d"
descriptors: ` + staking + `
steps: [{action: run}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
descriptors: ` + staking + `
steps: [{action: run}]
`,
			wantErr: "description is required",
		},
		{
			name: "missing descriptors",
			content: `
name: n
description: "d"
steps: [{action: run}]
`,
			wantErr: "descriptors is required",
		},
		{
			name: "descriptor file not found",
			content: `
name: n
description: "d"
descriptors: nope.yaml
steps: [{action: run}]
`,
			wantErr: "descriptor file not found",
		},
		{
			name: "no steps",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps: []
`,
			wantErr: "steps list is required",
		},
		{
			name: "resume first",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps: [{action: resume}]
`,
			wantErr: `first step must be "run"`,
		},
		{
			name: "unknown action",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps: [{action: run}, {action: replay}]
`,
			wantErr: `steps[1]: unknown action "replay"`,
		},
		{
			name: "retry on run",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps: [{action: run, retry_failed: true}]
`,
			wantErr: "retry_failed only applies to resume",
		},
		{
			name: "empty fault",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps:
  - action: run
    faults: [{contract: staking, function: set-nft-contract}]
`,
			wantErr: "one of reject, script or readback is required",
		},
		{
			name: "unknown script outcome",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps:
  - action: run
    faults: [{contract: staking, function: set-nft-contract, script: [explode]}]
`,
			wantErr: `unknown script outcome "explode"`,
		},
		{
			name: "preset without value",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
preset: [{contract: staking, field: nft-contract}]
steps: [{action: run}]
`,
			wantErr: "exactly one of ref or literal is required",
		},
		{
			name: "error with outcomes",
			content: `
name: n
description: "d"
descriptors: ` + staking + `
steps:
  - action: run
    expect: {error: CYCLE, success: false}
`,
			wantErr: "error cannot be combined with run outcomes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
