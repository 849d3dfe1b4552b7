package orchestrator

import (
	"fmt"

	"github.com/roach88/linkctl/internal/chain"
	"github.com/roach88/linkctl/internal/ir"
	"github.com/roach88/linkctl/internal/submitter"
	"github.com/roach88/linkctl/internal/verifier"
)

// wireArg renders an argument as the Clarity literal sent to the chain.
func wireArg(a ir.Arg, addresses map[string]string) (string, error) {
	if !a.IsRef() {
		return a.Literal, nil
	}
	addr, ok := addresses[a.Ref]
	if !ok {
		return "", fmt.Errorf("no address recorded for %q", a.Ref)
	}
	return chain.PrincipalLiteral(addr), nil
}

func wireArgs(args []ir.Arg, addresses map[string]string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		v, err := wireArg(a, addresses)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// callFor builds the resolved chain call for d.
func callFor(d ir.LinkDescriptor, addresses map[string]string) (submitter.Call, error) {
	contract, ok := addresses[d.Contract]
	if !ok {
		return submitter.Call{}, fmt.Errorf("no address recorded for %q", d.Contract)
	}
	args, err := wireArgs(d.Args, addresses)
	if err != nil {
		return submitter.Call{}, err
	}
	return submitter.Call{LinkID: d.ID, Contract: contract, Function: d.Function, Args: args}, nil
}

// readbackFor builds the readback query of d, or nil when none can be
// derived.
func readbackFor(d ir.LinkDescriptor, addresses map[string]string) (*verifier.Readback, error) {
	function, args, expect, ok := d.ReadbackQuery()
	if !ok {
		return nil, nil
	}
	contract, found := addresses[d.Contract]
	if !found {
		return nil, fmt.Errorf("no address recorded for %q", d.Contract)
	}
	queryArgs, err := wireArgs(args, addresses)
	if err != nil {
		return nil, err
	}
	expected, err := wireArg(expect, addresses)
	if err != nil {
		return nil, err
	}
	return &verifier.Readback{
		Contract: contract,
		Query:    chain.Query{Function: function, Args: queryArgs},
		Expected: expected,
	}, nil
}

// checkAddresses reports names the run needs but did not record.
func checkAddresses(descriptors []ir.LinkDescriptor, addresses map[string]string) error {
	seen := make(map[string]bool)
	var missing []string
	for _, d := range descriptors {
		for _, name := range d.AllRefs() {
			if _, ok := addresses[name]; !ok && !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	if len(missing) > 0 {
		return &ir.ConfigurationError{Message: "run snapshot lacks addresses", Unresolved: missing}
	}
	return nil
}
