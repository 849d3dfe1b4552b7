// Package ir provides the shared data model for linkctl.
//
// It contains the link descriptor types, per-link status, the persisted run
// state and the error taxonomy used by every other internal package. ir
// imports nothing internal, so it stays the foundational layer with no
// circular dependencies.
//
// Key design constraints:
//   - RunState is mutated only by the orchestrator; everyone else gets copies
//   - All JSON tags use snake_case
//   - Save ordering uses the Seq counter, never wall-clock timestamps
package ir
