package ir

import (
	"fmt"
	"strings"
)

// Arg is one setter argument: either a literal passed verbatim to the chain
// or a reference to another contract's address. Exactly one field is set.
type Arg struct {
	Literal string `json:"literal,omitempty" yaml:"literal,omitempty"`
	Ref     string `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// LiteralArg creates a literal argument.
func LiteralArg(v string) Arg { return Arg{Literal: v} }

// RefArg creates a contract reference argument.
func RefArg(name string) Arg { return Arg{Ref: name} }

// IsRef reports whether the argument references a contract.
func (a Arg) IsRef() bool { return a.Ref != "" }

// String renders the argument for logs and summaries.
func (a Arg) String() string {
	if a.IsRef() {
		return "ref(" + a.Ref + ")"
	}
	return a.Literal
}

// VerifySpec describes the read-only call used to read back a link.
//
// When Function is empty the getter is derived from the setter name
// (set-x -> get-x). Expect defaults to the last ref argument of the setter,
// or its last literal when it has no refs.
type VerifySpec struct {
	Function string `json:"function,omitempty" yaml:"function,omitempty"`
	Args     []Arg  `json:"args,omitempty" yaml:"args,omitempty"`
	Expect   *Arg   `json:"expect,omitempty" yaml:"expect,omitempty"`
	Skip     bool   `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// LinkDescriptor is one required configuration call: invoke Function on
// Contract with Args.
type LinkDescriptor struct {
	ID        string      `json:"id"`
	Contract  string      `json:"contract"`
	Function  string      `json:"function"`
	Args      []Arg       `json:"args"`
	DependsOn []string    `json:"depends_on,omitempty"`
	Verify    *VerifySpec `json:"verify,omitempty"`
}

// DefaultID returns the identifier used when a descriptor does not name one.
func DefaultID(contract, function string) string {
	return contract + "." + function
}

// Refs returns the distinct contract names referenced by the setter args,
// in first-seen order.
func (d LinkDescriptor) Refs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, a := range d.Args {
		if a.IsRef() && !seen[a.Ref] {
			seen[a.Ref] = true
			refs = append(refs, a.Ref)
		}
	}
	return refs
}

// AllRefs returns every contract name the descriptor needs resolved:
// the target, setter refs and verify refs.
func (d LinkDescriptor) AllRefs() []string {
	seen := map[string]bool{d.Contract: true}
	names := []string{d.Contract}
	add := func(args []Arg) {
		for _, a := range args {
			if a.IsRef() && !seen[a.Ref] {
				seen[a.Ref] = true
				names = append(names, a.Ref)
			}
		}
	}
	add(d.Args)
	if d.Verify != nil {
		add(d.Verify.Args)
		if d.Verify.Expect != nil {
			add([]Arg{*d.Verify.Expect})
		}
	}
	return names
}

// ReadbackQuery returns the getter function, its args and the expected
// value argument. ok is false when no readback can be derived or the
// descriptor opts out.
func (d LinkDescriptor) ReadbackQuery() (function string, args []Arg, expect Arg, ok bool) {
	var spec VerifySpec
	if d.Verify != nil {
		spec = *d.Verify
	}
	if spec.Skip {
		return "", nil, Arg{}, false
	}

	function = spec.Function
	if function == "" {
		rest, found := strings.CutPrefix(d.Function, "set-")
		if !found || rest == "" {
			return "", nil, Arg{}, false
		}
		function = "get-" + rest
	}

	if spec.Expect != nil {
		return function, spec.Args, *spec.Expect, true
	}
	for i := len(d.Args) - 1; i >= 0; i-- {
		if d.Args[i].IsRef() {
			return function, spec.Args, d.Args[i], true
		}
	}
	if len(d.Args) > 0 {
		return function, spec.Args, d.Args[len(d.Args)-1], true
	}
	return "", nil, Arg{}, false
}

// String renders the call as contract::function(args).
func (d LinkDescriptor) String() string {
	parts := make([]string, len(d.Args))
	for i, a := range d.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s::%s(%s)", d.Contract, d.Function, strings.Join(parts, ", "))
}

// Clone returns a deep copy of the descriptor.
func (d LinkDescriptor) Clone() LinkDescriptor {
	c := d
	c.Args = append([]Arg(nil), d.Args...)
	c.DependsOn = append([]string(nil), d.DependsOn...)
	if d.Verify != nil {
		v := *d.Verify
		v.Args = append([]Arg(nil), d.Verify.Args...)
		if d.Verify.Expect != nil {
			e := *d.Verify.Expect
			v.Expect = &e
		}
		c.Verify = &v
	}
	return c
}
