package chain

import "strings"

// PrincipalLiteral renders a principal as a Clarity literal ('SP….name).
func PrincipalLiteral(principal string) string {
	if strings.HasPrefix(principal, "'") {
		return principal
	}
	return "'" + principal
}

// NormalizeValue reduces a Clarity value to a comparable form: surrounding
// whitespace trimmed, (ok …) and (some …) wrappers removed and the leading
// quote of principal literals dropped.
func NormalizeValue(v string) string {
	v = strings.TrimSpace(v)
	for {
		unwrapped := false
		for _, wrapper := range []string{"(ok ", "(some "} {
			if strings.HasPrefix(v, wrapper) && strings.HasSuffix(v, ")") {
				v = strings.TrimSpace(v[len(wrapper) : len(v)-1])
				unwrapped = true
			}
		}
		if !unwrapped {
			break
		}
	}
	return strings.TrimPrefix(v, "'")
}

// ValuesEqual compares two Clarity values after normalization.
func ValuesEqual(a, b string) bool {
	return NormalizeValue(a) == NormalizeValue(b)
}
