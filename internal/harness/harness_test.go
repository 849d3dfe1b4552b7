package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/linkctl/internal/ir"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario failed:\n%s", strings.Join(result.Errors, "\n"))
			assert.Len(t, result.Steps, len(scenario.Steps))
		})
	}
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	path := writeScenario(t, `
name: wrong_counts
description: "expectations that do not hold"
descriptors: `+stakingPath(t)+`
steps:
  - action: run
    expect:
      success: false
      transactions: 9
      statuses:
        staking.set-nft-contract: failed/rejected
        staking.set-nothing: confirmed
      broadcasts: [staking.set-reward-rate]
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	joined := strings.Join(result.Errors, "\n")
	assert.Contains(t, joined, "steps[0] (run): success: expected false, got true")
	assert.Contains(t, joined, "transactions: expected 9, got 4")
	assert.Contains(t, joined, "status staking.set-nft-contract: expected failed/rejected, got confirmed")
	assert.Contains(t, joined, "status staking.set-nothing: link not in run")
	assert.Contains(t, joined, "broadcasts: expected [staking.set-reward-rate]")
}

func TestRun_ExpectedErrorThatDoesNotHappen(t *testing.T) {
	path := writeScenario(t, `
name: no_cycle
description: "a valid file does not fail pre-flight"
descriptors: `+stakingPath(t)+`
steps:
  - action: run
    expect:
      error: CYCLE
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"steps[0] (run): error: expected CYCLE, got none"}, result.Errors)
}

func TestRun_UnexpectedErrorWithoutExpectations(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/cycle.yaml")
	require.NoError(t, err)
	scenario.Steps[0].Expect = nil

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")
	assert.True(t, ir.IsCycleError(result.Steps[0].Err))
	assert.Nil(t, result.Steps[0].Report)
}

func TestRun_UnknownFaultContract(t *testing.T) {
	unresolved, err := filepath.Abs("testdata/unresolved.yaml")
	require.NoError(t, err)
	path := writeScenario(t, `
name: unknown_contract
description: "faults must name a contract from the address book"
descriptors: `+unresolved+`
steps:
  - action: run
    faults:
      - contract: staking
        function: set-nft-contract
        reject: nope
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	_, err = Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `steps[0]: faults[0]: contract "staking" is not in the address book`)
}

func TestRun_LiteralPresetConfirmsRateWithoutTransaction(t *testing.T) {
	path := writeScenario(t, `
name: preset_rate
description: "a literal preset satisfies the explicit verify clause"
descriptors: `+stakingPath(t)+`
preset:
  - contract: staking
    field: reward-rate
    literal: u100
steps:
  - action: run
    expect:
      success: true
      transactions: 3
      notes:
        staking.set-reward-rate: already-applied
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
	assert.NotContains(t, result.Steps[0].Broadcasts, "staking.set-reward-rate")
}
