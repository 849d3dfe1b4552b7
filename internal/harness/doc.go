// Package harness runs linking scenarios end to end against an in-memory
// chain.
//
// A scenario names a descriptor file, optional chain presets and a list of
// steps. Each step starts or resumes the run through the real controller,
// submitter and verifier, after installing chain faults, and is checked
// against its expectations. Every scenario runs with a fresh chain and
// run store, a deterministic clock and a fixed run id.
//
// # Scenario Format
//
//	name: rejected_link_blocks_dependents
//	description: "A rejected link holds back everything downstream"
//	descriptors: ../staking.yaml
//	max_in_flight: 1
//	preset:
//	  - contract: impact-tracker
//	    field: reward-token
//	    ref: gip-token
//	steps:
//	  - action: run
//	    faults:
//	      - contract: nft-collection
//	        function: set-governance
//	        reject: not contract owner
//	    expect:
//	      success: false
//	      transactions: 1
//	      statuses:
//	        nft-collection.set-governance: failed/rejected
//	      blocked: [staking.set-nft-contract]
//	  - action: resume
//	    retry_failed: true
//	    heal: true
//	    expect:
//	      success: true
//
// # Faults
//
// A fault applies to one contract function. reject refuses every call,
// readback forces a read-only function's result, and script queues
// outcomes for successive calls: transient, unavailable, ambiguous
// (applied but reported as a timeout), revert, drop, pending (never
// leaves the mempool) or ok.
//
// # Expectations
//
// error expects a pre-flight failure with the given code and no
// broadcasts. Otherwise success, transactions, statuses ("kind" or
// "kind/failure"), notes, blocked (as a set) and broadcasts (in order)
// are compared when present, and the persisted snapshot must agree with
// the returned report.
package harness
