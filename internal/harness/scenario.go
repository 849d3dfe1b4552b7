package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario.
// A scenario runs a descriptor file against a scripted in-memory chain
// and checks each step's report.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Descriptors is the descriptor file to link.
	// Relative paths are resolved against the scenario file location.
	Descriptors string `yaml:"descriptors"`

	// MaxInFlight bounds concurrent links. Zero means 1, which keeps
	// broadcast order deterministic.
	MaxInFlight int `yaml:"max_in_flight,omitempty"`

	// Preset writes values to the chain before the first step, as if an
	// earlier deployment had already configured them.
	Preset []Preset `yaml:"preset,omitempty"`

	// Steps run in order against the same chain and run store.
	Steps []Step `yaml:"steps"`

	// RunID is the fixed run id for the scenario. Defaults to "scenario-run".
	RunID string `yaml:"run_id,omitempty"`
}

// Preset is one chain value set up front.
type Preset struct {
	Contract string `yaml:"contract"`
	Field    string `yaml:"field"`

	// Exactly one of Ref (a contract name from the address book) or
	// Literal (a Clarity literal) is set.
	Ref     string `yaml:"ref,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// Step is one controller invocation.
type Step struct {
	// Action is "run" or "resume".
	Action string `yaml:"action"`

	// RetryFailed resets Failed links before resuming.
	RetryFailed bool `yaml:"retry_failed,omitempty"`

	// Heal drops every fault installed by earlier steps.
	Heal bool `yaml:"heal,omitempty"`

	// Faults are installed on the chain before the step runs.
	Faults []Fault `yaml:"faults,omitempty"`

	// Expect is checked against the step's report. Nil skips checks.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Fault scripts chain behavior for one contract function.
type Fault struct {
	Contract string `yaml:"contract"`
	Function string `yaml:"function"`

	// Reject refuses every call with this reason.
	Reject string `yaml:"reject,omitempty"`

	// Script queues outcomes for successive calls: transient,
	// unavailable, ambiguous, revert, drop, pending or ok.
	Script []string `yaml:"script,omitempty"`

	// Readback forces the read-only Function to return this value.
	Readback string `yaml:"readback,omitempty"`
}

// Expect describes the expected outcome of a step.
type Expect struct {
	// Error is the expected taxonomy code (e.g. CYCLE, CONFIGURATION).
	// When set, the step must fail before any broadcast.
	Error string `yaml:"error,omitempty"`

	Success      *bool `yaml:"success,omitempty"`
	Transactions *int  `yaml:"transactions,omitempty"`

	// Statuses maps link ids to "kind" or "kind/failure",
	// e.g. "confirmed" or "failed/rejected".
	Statuses map[string]string `yaml:"statuses,omitempty"`

	// Notes maps link ids to expected status notes.
	Notes map[string]string `yaml:"notes,omitempty"`

	// Blocked is the exact set of links held back by failed upstreams.
	Blocked []string `yaml:"blocked,omitempty"`

	// Broadcasts is the exact order of links broadcast during the step.
	Broadcasts []string `yaml:"broadcasts,omitempty"`
}

// Step actions.
const (
	ActionRun    = "run"
	ActionResume = "resume"
)

var knownScript = map[string]bool{
	"transient":   true,
	"unavailable": true,
	"ambiguous":   true,
	"revert":      true,
	"drop":        true,
	"pending":     true,
	"ok":          true,
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the descriptors path is resolved against the scenario's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Descriptors != "" && !filepath.IsAbs(scenario.Descriptors) {
		scenario.Descriptors = filepath.Join(filepath.Dir(path), scenario.Descriptors)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Descriptors == "" {
		return fmt.Errorf("descriptors is required")
	}
	if _, err := os.Stat(s.Descriptors); os.IsNotExist(err) {
		return fmt.Errorf("descriptor file not found: %s", s.Descriptors)
	}
	if s.MaxInFlight < 0 {
		return fmt.Errorf("max_in_flight must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, p := range s.Preset {
		if p.Contract == "" || p.Field == "" {
			return fmt.Errorf("preset[%d]: contract and field are required", i)
		}
		if (p.Ref == "") == (p.Literal == "") {
			return fmt.Errorf("preset[%d]: exactly one of ref or literal is required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	if s.Steps[0].Action != ActionRun {
		return fmt.Errorf("steps[0]: first step must be %q", ActionRun)
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Action {
	case ActionRun:
		if step.RetryFailed {
			return fmt.Errorf("steps[%d]: retry_failed only applies to resume", index)
		}
	case ActionResume:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	for j, f := range step.Faults {
		if f.Contract == "" || f.Function == "" {
			return fmt.Errorf("steps[%d].faults[%d]: contract and function are required", index, j)
		}
		if f.Reject == "" && len(f.Script) == 0 && f.Readback == "" {
			return fmt.Errorf("steps[%d].faults[%d]: one of reject, script or readback is required", index, j)
		}
		for _, s := range f.Script {
			if !knownScript[s] {
				return fmt.Errorf("steps[%d].faults[%d]: unknown script outcome %q", index, j, s)
			}
		}
	}

	if e := step.Expect; e != nil {
		if e.Error != "" && (e.Success != nil || len(e.Statuses) > 0) {
			return fmt.Errorf("steps[%d].expect: error cannot be combined with run outcomes", index)
		}
		if e.Transactions != nil && *e.Transactions < 0 {
			return fmt.Errorf("steps[%d].expect: transactions must be non-negative", index)
		}
	}
	return nil
}
