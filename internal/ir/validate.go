package ir

import "fmt"

// ValidateDescriptors checks the structural rules of a descriptor set:
// non-empty unique IDs, a target contract and function on every
// descriptor, exactly one of literal/ref per argument, and depends_on
// entries naming other known descriptors. Every problem is reported in one
// *ConfigurationError; nil means the set is well formed.
func ValidateDescriptors(descriptors []LinkDescriptor) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(descriptors) == 0 {
		return &ConfigurationError{Message: "descriptor set is empty"}
	}

	ids := make(map[string]bool, len(descriptors))
	for i, d := range descriptors {
		switch {
		case d.ID == "":
			add("links[%d]: id is empty", i)
		case ids[d.ID]:
			add("links[%d]: duplicate id %q", i, d.ID)
		}
		ids[d.ID] = true
	}

	checkArgs := func(where string, args []Arg) {
		for k, a := range args {
			switch {
			case a.Ref != "" && a.Literal != "":
				add("%s: arg %d sets both ref and literal", where, k)
			case a.Ref == "" && a.Literal == "":
				add("%s: arg %d is empty", where, k)
			}
		}
	}

	for i, d := range descriptors {
		where := fmt.Sprintf("links[%d] (%s)", i, d.ID)
		if d.Contract == "" {
			add("%s: contract is empty", where)
		}
		if d.Function == "" {
			add("%s: function is empty", where)
		}
		checkArgs(where, d.Args)
		for _, dep := range d.DependsOn {
			switch {
			case dep == d.ID:
				add("%s: depends on itself", where)
			case !ids[dep]:
				add("%s: depends on unknown link %q", where, dep)
			}
		}
		if v := d.Verify; v != nil {
			checkArgs(where+" verify", v.Args)
			if v.Expect != nil {
				checkArgs(where+" verify expect", []Arg{*v.Expect})
			}
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Message: "invalid link descriptors", Problems: problems}
	}
	return nil
}
