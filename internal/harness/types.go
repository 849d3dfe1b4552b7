package harness

import (
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
)

// StepResult is what one step produced.
type StepResult struct {
	Action string `json:"action"`

	// Report is nil when the step failed before a run existed.
	Report *orchestrator.Report `json:"-"`

	// Stored is the run snapshot persisted after the step, if any.
	Stored *ir.RunState `json:"-"`

	// Err is the error returned by the controller, if any.
	Err error `json:"-"`

	// Broadcasts lists the link ids broadcast during the step, in order.
	Broadcasts []string `json:"broadcasts"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	Steps []StepResult `json:"steps"`

	// Errors contains expectation failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
