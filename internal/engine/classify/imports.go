package classify

import "klepto/internal/engine/facts"

type importKey struct {
	fullPath  string
	kind      facts.UseKind
	absolute  bool
	publicUse bool
}

// Unique drops repeated imports, keeping the first. A `use` and a `pub use`
// of the same path are distinct.
func Unique(imports []facts.ImportFact) []facts.ImportFact {
	seen := make(map[importKey]struct{}, len(imports))
	out := make([]facts.ImportFact, 0, len(imports))
	for _, imp := range imports {
		k := importKey{imp.FullPath, imp.Kind, imp.Absolute, imp.PublicUse}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, imp)
	}
	return out
}

// UniquePreferPublicUse dedups ignoring visibility and keeps the `pub use`
// variant when both exist. Order follows first appearance of each key.
func UniquePreferPublicUse(imports []facts.ImportFact) []facts.ImportFact {
	pos := make(map[importKey]int, len(imports))
	out := make([]facts.ImportFact, 0, len(imports))
	for _, imp := range imports {
		k := importKey{fullPath: imp.FullPath, kind: imp.Kind, absolute: imp.Absolute}
		i, ok := pos[k]
		if !ok {
			pos[k] = len(out)
			out = append(out, imp)
			continue
		}
		if imp.PublicUse && !out[i].PublicUse {
			out[i] = imp
		}
	}
	return out
}

// OriginOf treats unclassified imports as unknown external.
func OriginOf(imp facts.ImportFact) facts.Origin {
	if imp.Origin == nil {
		return facts.OriginUnknownExternal
	}
	return *imp.Origin
}

func GroupByOrigin(imports []facts.ImportFact) map[facts.Origin][]facts.ImportFact {
	out := make(map[facts.Origin][]facts.ImportFact)
	for _, imp := range imports {
		o := OriginOf(imp)
		out[o] = append(out[o], imp)
	}
	return out
}

func GroupByRoot(imports []facts.ImportFact) map[string][]facts.ImportFact {
	out := make(map[string][]facts.ImportFact)
	for _, imp := range imports {
		out[imp.Root] = append(out[imp.Root], imp)
	}
	return out
}

type Summary struct {
	Total         int                  `json:"total"`
	ByOrigin      map[facts.Origin]int `json:"by_origin"`
	ByRoot        map[string]int       `json:"by_root"`
	PublicUse     int                  `json:"pub_use_count"`
	GlobCount     int                  `json:"glob_count"`
	RenameCount   int                  `json:"rename_count"`
	AbsoluteCount int                  `json:"absolute_count"`
}

// Summarize counts imports at a glance; usually called after Unique.
func Summarize(imports []facts.ImportFact) Summary {
	s := Summary{
		Total:    len(imports),
		ByOrigin: make(map[facts.Origin]int),
		ByRoot:   make(map[string]int),
	}
	for _, imp := range imports {
		s.ByOrigin[OriginOf(imp)]++
		s.ByRoot[imp.Root]++
		if imp.PublicUse {
			s.PublicUse++
		}
		switch imp.Kind.Type {
		case facts.UseGlob:
			s.GlobCount++
		case facts.UseRename:
			s.RenameCount++
		}
		if imp.Absolute {
			s.AbsoluteCount++
		}
	}
	return s
}
