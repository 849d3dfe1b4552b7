// Package memchain is an in-memory chain that follows the setter/getter
// convention: a successful call to set-x on a contract stores the last
// argument under x, and the read-only get-x returns it.
//
// Behaviors can be scripted per (contract, function) to inject rejections,
// transient errors, reverts, drops, slow confirmations and calls that land
// on-chain while the client sees an error. It backs unit tests and the CLI
// --simulate mode.
package memchain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/linkctl/internal/chain"
)

// Behavior scripts the outcome of one CallPublicFunction.
type Behavior struct {
	// Err is returned without broadcasting anything.
	Err error

	// LandErr is returned to the caller although the call was broadcast and
	// applied (the ambiguous "timed out after sending" case).
	LandErr error

	// Outcome is the final transaction status. Defaults to success.
	Outcome chain.TxStatus

	// PendingPolls is how many TxStatus polls report pending first.
	// Negative means the transaction never leaves pending.
	PendingPolls int

	// Detail is reported alongside a reverted or dropped outcome.
	Detail string
}

// Call records one broadcast (or attempted broadcast).
type Call struct {
	TxID     string
	Contract string
	Function string
	Args     []string
	Err      error
}

type tx struct {
	call     Call
	behavior Behavior
	polls    int
	applied  bool
}

// Chain is a thread-safe in-memory chain.
type Chain struct {
	mu        sync.Mutex
	seq       int
	state     map[string]map[string]string // contract -> key -> value
	readbacks map[string]string            // contract/function -> forced value
	scripts   map[string][]Behavior        // contract/function -> queued behaviors
	rejects   map[string]string            // contract/function -> reason
	txs       map[string]*tx
	calls     []Call
	reads     int
}

// New creates an empty chain.
func New() *Chain {
	return &Chain{
		state:     make(map[string]map[string]string),
		readbacks: make(map[string]string),
		scripts:   make(map[string][]Behavior),
		rejects:   make(map[string]string),
		txs:       make(map[string]*tx),
	}
}

func key(contract, function string) string {
	return contract + "/" + function
}

// Script queues behaviors for successive calls of function on contract.
// Calls beyond the script succeed.
func (c *Chain) Script(contract, function string, behaviors ...Behavior) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := key(contract, function)
	c.scripts[k] = append(c.scripts[k], behaviors...)
}

// Reject makes every call of function on contract fail with a permanent
// rejection (e.g. the sender is not the contract admin).
func (c *Chain) Reject(contract, function, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejects[key(contract, function)] = reason
}

// ClearFaults drops every queued script, rejection and forced readback.
// Chain state and transaction history are kept.
func (c *Chain) ClearFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = make(map[string][]Behavior)
	c.rejects = make(map[string]string)
	c.readbacks = make(map[string]string)
}

// ForceReadback makes the read-only function always return value.
func (c *Chain) ForceReadback(contract, function, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readbacks[key(contract, function)] = value
}

// Set stores a value directly, as if configured by an earlier run.
func (c *Chain) Set(contract, field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(contract, field, value)
}

func (c *Chain) setLocked(contract, field, value string) {
	if c.state[contract] == nil {
		c.state[contract] = make(map[string]string)
	}
	c.state[contract][field] = value
}

// Calls returns every broadcast attempt in order.
func (c *Chain) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Broadcasts returns the calls that produced a transaction.
func (c *Chain) Broadcasts() []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.TxID != "" {
			out = append(out, call)
		}
	}
	return out
}

// Reads returns the number of read-only calls served.
func (c *Chain) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// CallPublicFunction implements chain.Client.
func (c *Chain) CallPublicFunction(ctx context.Context, contract, function string, args []string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(contract, function)
	var b Behavior
	if queue := c.scripts[k]; len(queue) > 0 {
		b = queue[0]
		c.scripts[k] = queue[1:]
	}
	if b.Outcome == "" {
		b.Outcome = chain.TxSuccess
	}
	if reason, ok := c.rejects[k]; ok && b.Err == nil {
		b.Err = chain.Errorf(chain.KindRejected, "%s", reason)
	}

	call := Call{Contract: contract, Function: function, Args: append([]string(nil), args...)}
	if b.Err != nil {
		call.Err = b.Err
		c.calls = append(c.calls, call)
		return "", b.Err
	}

	c.seq++
	call.TxID = fmt.Sprintf("0x%064x", c.seq)
	t := &tx{call: call, behavior: b}
	c.txs[call.TxID] = t

	if b.LandErr != nil {
		call.Err = b.LandErr
		c.calls = append(c.calls, call)
		c.applyLocked(t)
		return "", b.LandErr
	}

	c.calls = append(c.calls, call)
	return call.TxID, nil
}

// TxStatus implements chain.Client.
func (c *Chain) TxStatus(ctx context.Context, txID string) (chain.TxResult, error) {
	if err := ctx.Err(); err != nil {
		return chain.TxResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.txs[txID]
	if !ok {
		return chain.TxResult{}, chain.Errorf(chain.KindNotFound, "unknown tx %s", txID)
	}

	if t.behavior.PendingPolls < 0 || t.polls < t.behavior.PendingPolls {
		t.polls++
		return chain.TxResult{Status: chain.TxPending}, nil
	}

	if t.behavior.Outcome == chain.TxSuccess {
		c.applyLocked(t)
	}
	return chain.TxResult{Status: t.behavior.Outcome, Detail: t.behavior.Detail}, nil
}

// ReadOnlyCall implements chain.Client.
func (c *Chain) ReadOnlyCall(ctx context.Context, contract string, query chain.Query) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads++

	if v, ok := c.readbacks[key(contract, query.Function)]; ok {
		return v, nil
	}
	field, ok := strings.CutPrefix(query.Function, "get-")
	if !ok {
		return "", chain.Errorf(chain.KindMalformed, "no read-only function %s on %s", query.Function, contract)
	}
	if v, ok := c.state[contract][field]; ok {
		return "(some " + v + ")", nil
	}
	return "none", nil
}

// applyLocked performs the setter effect of a successful transaction once.
func (c *Chain) applyLocked(t *tx) {
	if t.applied {
		return
	}
	t.applied = true
	field, ok := strings.CutPrefix(t.call.Function, "set-")
	if !ok || len(t.call.Args) == 0 {
		return
	}
	c.setLocked(t.call.Contract, field, t.call.Args[len(t.call.Args)-1])
}

var _ chain.Client = (*Chain)(nil)
