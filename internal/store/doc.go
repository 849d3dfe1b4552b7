// Package store provides SQLite-backed durable storage for linking runs.
//
// Each run is stored as one snapshot row holding the canonical JSON of its
// RunState, plus an append-only transitions table that mirrors the run
// history for querying.
//
// # Critical Patterns
//
// Atomic overwrite:
//   - A save upserts the snapshot and appends new transitions in a single
//     transaction; a crash leaves either the old or the new snapshot.
//
// Monotonic saves:
//   - RunState.Seq increases on every save. The upsert only replaces a row
//     whose stored seq is lower, so a stale writer gets ErrStaleSnapshot
//     instead of silently rolling progress back.
//
// Deterministic reads:
//   - Listings order by created_at, run_id; history orders by seq.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
