// Package classify assigns import origins and derives use-site views over a
// merged fact set.
package classify

import (
	"strings"

	"klepto/internal/engine/facts"
)

// NameSets carries the externally resolved crate names for one run.
// Names are normalized on construction; callers may pass raw manifest names.
type NameSets struct {
	workspace map[string]struct{}
	deps      map[string]struct{}
}

func NewNameSets(workspace, deps []string) NameSets {
	return NameSets{workspace: toSet(workspace), deps: toSet(deps)}
}

func toSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out[Normalize(n)] = struct{}{}
		}
	}
	return out
}

// IsWorkspace reports whether root names a workspace member.
func (n NameSets) IsWorkspace(root string) bool {
	_, ok := n.workspace[Normalize(root)]
	return ok
}

func (n NameSets) IsDependency(root string) bool {
	_, ok := n.deps[Normalize(root)]
	return ok
}

// Normalize maps a crate name to its in-source identifier form.
func Normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Origin decides the provenance of a single import.
func Origin(imp facts.ImportFact, names NameSets) facts.Origin {
	if imp.Internal {
		return facts.OriginInternal
	}
	switch imp.Root {
	case "std":
		return facts.OriginStd
	case "core":
		return facts.OriginCore
	case "alloc":
		return facts.OriginAlloc
	}
	switch {
	case names.IsWorkspace(imp.Root):
		return facts.OriginWorkspaceMember
	case names.IsDependency(imp.Root):
		return facts.OriginDependency
	default:
		return facts.OriginUnknownExternal
	}
}

// Classify sets Origin on every import that has none yet. Imports that were
// already classified keep their origin.
func Classify(imports []facts.ImportFact, names NameSets) {
	for i := range imports {
		if imports[i].Origin != nil {
			continue
		}
		o := Origin(imports[i], names)
		imports[i].Origin = &o
	}
}

// IsStdish reports std, core and alloc origins.
func IsStdish(o facts.Origin) bool {
	return o == facts.OriginStd || o == facts.OriginCore || o == facts.OriginAlloc
}
