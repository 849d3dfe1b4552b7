package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/linkctl/internal/addressbook"
	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/chain/memchain"
	"github.com/roach88/linkctl/internal/compiler"
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/orchestrator"
	"github.com/roach88/linkctl/internal/submitter"
	"github.com/roach88/linkctl/internal/testutil"
	"github.com/roach88/linkctl/internal/verifier"
)

const (
	defaultRunID = "scenario-run"

	// stepTimeout bounds a single step so a stuck scenario fails instead
	// of hanging the test binary.
	stepTimeout = 30 * time.Second

	pollInterval   = time.Millisecond
	confirmTimeout = 50 * time.Millisecond
)

// retryPolicy keeps the default attempt budget with sub-millisecond waits.
var retryPolicy = submitter.Policy{
	MaxAttempts:    5,
	InitialBackoff: time.Microsecond,
	MaxBackoff:     time.Millisecond,
	Multiplier:     2,
}

// Harness runs one scenario against a fresh chain and run store.
type Harness struct {
	chain  *memchain.Chain
	store  *testutil.MemStore
	ctrl   *orchestrator.Controller
	book   *addressbook.Book
	runID  string
	logger *slog.Logger

	// linkOf maps principal/function of a broadcast back to its link id.
	linkOf map[string]string
}

// Run executes a scenario and returns the result.
//
// Each scenario gets its own in-memory chain and run store, a
// deterministic clock, a fixed run id, instant retry backoff and a short
// confirmation timeout. Setup problems (unloadable descriptors, faults
// naming unknown contracts) are returned as errors; unmet expectations
// are recorded in the result.
func Run(scenario *Scenario) (*Result, error) {
	h, descriptors, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if step.Heal {
			h.chain.ClearFaults()
		}
		if err := h.installFaults(step.Faults); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		sr := h.runStep(step, descriptors)
		result.Steps = append(result.Steps, sr)

		if step.Expect != nil {
			for _, msg := range checkStep(step.Expect, sr) {
				result.AddError(fmt.Sprintf("steps[%d] (%s): %s", i, step.Action, msg))
			}
		} else if sr.Err != nil {
			result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", i, step.Action, sr.Err))
		}
	}
	return result, nil
}

func newHarness(s *Scenario) (*Harness, []ir.LinkDescriptor, error) {
	file, err := compiler.LoadFile(s.Descriptors)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load descriptors: %w", err)
	}
	descriptors := file.Descriptors()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runID := s.RunID
	if runID == "" {
		runID = defaultRunID
	}
	maxInFlight := s.MaxInFlight
	if maxInFlight == 0 {
		maxInFlight = 1
	}

	mc := memchain.New()
	st := testutil.NewMemStore()
	sub := submitter.New(mc,
		submitter.WithLogger(logger),
		submitter.WithPolicy(retryPolicy),
	)
	ver := verifier.New(mc,
		verifier.WithLogger(logger),
		verifier.WithInterval(pollInterval),
		verifier.WithTimeout(confirmTimeout),
	)

	h := &Harness{
		chain: mc,
		store: st,
		ctrl: orchestrator.New(mc, st,
			orchestrator.WithLogger(logger),
			orchestrator.WithMaxInFlight(maxInFlight),
			orchestrator.WithSubmitter(sub),
			orchestrator.WithVerifier(ver),
			orchestrator.WithRunIDGenerator(orchestrator.NewFixedGenerator(runID)),
			orchestrator.WithClock(testutil.NewDeterministicClock().Now),
		),
		book:   file.Book(),
		runID:  runID,
		logger: logger,
		linkOf: make(map[string]string),
	}

	for _, d := range descriptors {
		if principal, ok := h.book.Lookup(d.Contract); ok {
			k := principal + "/" + d.Function
			if _, dup := h.linkOf[k]; !dup {
				h.linkOf[k] = d.ID
			}
		}
	}

	for i, p := range s.Preset {
		contract, err := h.principal(p.Contract)
		if err != nil {
			return nil, nil, fmt.Errorf("preset[%d]: %w", i, err)
		}
		value := p.Literal
		if p.Ref != "" {
			ref, err := h.principal(p.Ref)
			if err != nil {
				return nil, nil, fmt.Errorf("preset[%d]: %w", i, err)
			}
			value = chain.PrincipalLiteral(ref)
		}
		mc.Set(contract, p.Field, value)
	}

	return h, descriptors, nil
}

func (h *Harness) principal(name string) (string, error) {
	p, ok := h.book.Lookup(name)
	if !ok {
		return "", fmt.Errorf("contract %q is not in the address book", name)
	}
	return p, nil
}

// installFaults scripts the chain for the next step.
func (h *Harness) installFaults(faults []Fault) error {
	for j, f := range faults {
		contract, err := h.principal(f.Contract)
		if err != nil {
			return fmt.Errorf("faults[%d]: %w", j, err)
		}
		if f.Reject != "" {
			h.chain.Reject(contract, f.Function, f.Reject)
		}
		if f.Readback != "" {
			h.chain.ForceReadback(contract, f.Function, f.Readback)
		}
		if len(f.Script) > 0 {
			behaviors := make([]memchain.Behavior, len(f.Script))
			for k, s := range f.Script {
				behaviors[k] = behaviorFor(s)
			}
			h.chain.Script(contract, f.Function, behaviors...)
		}
	}
	return nil
}

func behaviorFor(outcome string) memchain.Behavior {
	switch outcome {
	case "transient":
		return memchain.Behavior{Err: chain.Errorf(chain.KindTimeout, "request timed out")}
	case "unavailable":
		return memchain.Behavior{Err: chain.Errorf(chain.KindUnavailable, "node down")}
	case "ambiguous":
		return memchain.Behavior{LandErr: chain.Errorf(chain.KindTimeout, "gateway timeout after send")}
	case "revert":
		return memchain.Behavior{Outcome: chain.TxReverted, Detail: "(err u403)"}
	case "drop":
		return memchain.Behavior{Outcome: chain.TxDropped, Detail: "evicted from mempool"}
	case "pending":
		return memchain.Behavior{PendingPolls: -1}
	default:
		return memchain.Behavior{}
	}
}

func (h *Harness) runStep(step Step, descriptors []ir.LinkDescriptor) StepResult {
	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	before := len(h.chain.Calls())
	sr := StepResult{Action: step.Action}
	switch step.Action {
	case ActionRun:
		sr.Report, sr.Err = h.ctrl.StartRun(ctx, descriptors, h.book)
	case ActionResume:
		sr.Report, sr.Err = h.ctrl.ResumeRun(ctx, h.runID, orchestrator.ResumeOptions{RetryFailed: step.RetryFailed})
	}

	if sr.Err == nil {
		if stored, err := h.store.Load(ctx, h.runID); err == nil {
			sr.Stored = stored
		}
	}

	sr.Broadcasts = []string{}
	for _, call := range h.chain.Calls()[before:] {
		if call.TxID == "" {
			continue
		}
		id, ok := h.linkOf[call.Contract+"/"+call.Function]
		if !ok {
			id = call.Contract + "." + call.Function
		}
		sr.Broadcasts = append(sr.Broadcasts, id)
	}

	h.logger.Debug("step finished", "action", step.Action, "broadcasts", len(sr.Broadcasts), "error", sr.Err)
	return sr
}
