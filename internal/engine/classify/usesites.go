package classify

import (
	"strings"

	"klepto/internal/engine/facts"
)

type UseSiteKind string

const (
	UseStmt   UseSiteKind = "use"
	PathUse   UseSiteKind = "path"
	MacroCall UseSiteKind = "macro_call"
)

// UseSite is one reference to a crate root, whatever syntax produced it.
type UseSite struct {
	Root     string         `json:"root"`
	FullPath string         `json:"path"`
	Head     string         `json:"head"`
	Kind     UseSiteKind    `json:"kind"`
	Location facts.Location `json:"location"`
	Scope    string         `json:"scope"`
}

// SplitDepPath splits "dep::a::b" (or "::dep::a::b") into root, head and the
// path without the leading separator. Single-segment paths are rejected.
func SplitDepPath(raw string) (root, head, full string, ok bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), "::")
	parts := strings.Split(s, "::")
	if len(parts) < 2 || parts[0] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], strings.Join(parts, "::"), true
}

// ScopeLabel names where an occurrence sits: the enclosing function, else the
// inline module, else the file itself.
func ScopeLabel(enclosingFn *string, modulePath []string) string {
	if enclosingFn != nil {
		return *enclosingFn
	}
	if len(modulePath) == 0 {
		return "file"
	}
	return "module::" + strings.Join(modulePath, "::")
}

// DependencyUseSites collects imports, qualified paths and path-qualified
// macro calls whose root is one of roots.
func DependencyUseSites(set *facts.Set, roots []string) []UseSite {
	wanted := toSet(roots)
	return collect(set, func(root string) bool {
		_, ok := wanted[Normalize(root)]
		return ok
	})
}

// InternalUseSites is the same view restricted to the crate's own roots.
func InternalUseSites(set *facts.Set, crateID string) []UseSite {
	self := Normalize(crateID)
	return collect(set, func(root string) bool {
		switch root {
		case "crate", "self", "super":
			return true
		}
		return Normalize(root) == self
	})
}

func collect(set *facts.Set, keep func(root string) bool) []UseSite {
	var out []UseSite
	for _, imp := range set.Imports {
		if !keep(imp.Root) {
			continue
		}
		head := "*"
		if len(imp.Segments) > 0 {
			head = imp.Segments[0]
		}
		out = append(out, UseSite{
			Root:     imp.Root,
			FullPath: imp.FullPath,
			Head:     head,
			Kind:     UseStmt,
			Location: imp.Location,
			Scope:    ScopeLabel(nil, imp.ModulePath),
		})
	}
	for _, p := range set.Paths {
		root, head, full, ok := SplitDepPath(p.Path)
		if !ok || !keep(root) {
			continue
		}
		out = append(out, UseSite{
			Root:     root,
			FullPath: full,
			Head:     head,
			Kind:     PathUse,
			Location: p.Location,
			Scope:    ScopeLabel(p.EnclosingFn, p.ModulePath),
		})
	}
	for _, m := range set.MacroInvocations {
		if m.Path == nil {
			continue
		}
		root, head, full, ok := SplitDepPath(*m.Path)
		if !ok || !keep(root) {
			continue
		}
		out = append(out, UseSite{
			Root:     root,
			FullPath: full,
			Head:     head,
			Kind:     MacroCall,
			Location: m.Location,
			Scope:    ScopeLabel(m.EnclosingFn, m.ModulePath),
		})
	}
	return out
}
