// Package orchestrator drives a linking run: it resolves addresses and
// call order, submits each link, verifies it and persists progress after
// every status transition so an interrupted run can resume without
// resubmitting anything already on-chain.
//
// # Execution model
//
// One controller goroutine owns the RunState. Ready links (every
// dependency Confirmed) are handed to worker goroutines, at most
// MaxInFlight at a time, in resolver order. Workers report progress and
// results back over a channel; the controller applies each transition and
// saves the snapshot before doing anything else.
//
// A Failed or Indeterminate link blocks its transitive dependents, which
// stay Pending with BlockedBy set. Independent branches keep going.
//
// # Cancellation
//
// Cancelling the run context stops new dispatches and further retry
// attempts. A call already broadcast is still verified on a detached
// context bounded by the verifier timeout, so its outcome gets recorded.
package orchestrator
