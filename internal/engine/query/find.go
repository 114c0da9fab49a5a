package query

import (
	"strings"

	"klepto/internal/engine/facts"
)

// FindPaths returns path occurrences equal to path.
func FindPaths(set *facts.Set, path string) []facts.PathOccurrenceFact {
	var out []facts.PathOccurrenceFact
	for _, p := range set.Paths {
		if p.Path == path {
			out = append(out, p)
		}
	}
	return out
}

func FindMacroInvocations(set *facts.Set, name string) []facts.MacroInvocationFact {
	var out []facts.MacroInvocationFact
	for _, m := range set.MacroInvocations {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// FindCalls returns calls whose callee text contains needle.
func FindCalls(set *facts.Set, needle string) []facts.CallOccurrenceFact {
	return findCalls(set, func(callee string) bool { return strings.Contains(callee, needle) })
}

func UnwrapCalls(set *facts.Set) []facts.CallOccurrenceFact {
	return findCalls(set, func(callee string) bool { return IsAccessorCall(callee, "unwrap") })
}

func ExpectCalls(set *facts.Set) []facts.CallOccurrenceFact {
	return findCalls(set, func(callee string) bool { return IsAccessorCall(callee, "expect") })
}

// IsAccessorCall reports whether callee is the method name itself or a
// rendered member access ending in it.
func IsAccessorCall(callee, method string) bool {
	return callee == method || strings.HasSuffix(callee, "."+method)
}

func findCalls(set *facts.Set, match func(string) bool) []facts.CallOccurrenceFact {
	var out []facts.CallOccurrenceFact
	for _, c := range set.Calls {
		if match(c.Callee) {
			out = append(out, c)
		}
	}
	return out
}
