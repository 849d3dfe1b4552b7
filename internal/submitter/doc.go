// Package submitter broadcasts configuration calls through a chain.Client.
//
// Transient failures (timeouts, unavailable node, nonce conflicts, rate
// limiting) are retried with capped exponential backoff and jitter. Anything
// else is a permanent rejection and is returned immediately.
//
// A broadcast that timed out or lost its node may still have landed
// on-chain. Before retrying such an attempt the submitter runs the caller's
// readback of the intended value and reports AlreadyApplied instead of
// broadcasting twice. Without a readback the retry can double-set; this is
// logged. Nonce conflicts and rate limiting are retried without a readback.
//
// The broadcast itself is never cancelled mid-flight. Cancelling the context
// stops further attempts only.
package submitter
