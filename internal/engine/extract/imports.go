package extract

import (
	"strings"

	"klepto/internal/engine/facts"
	"klepto/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// useLeaf is one flattened leaf of a use tree.
type useLeaf struct {
	segs     []string
	kind     facts.UseKind
	absolute bool
	node     *sitter.Node
}

func (w *walker) handleUse(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	// Paths inside use trees are imports, never path occurrences.
	if w.fnDepth > 0 {
		return true
	}
	arg := node.ChildByFieldName("argument")
	if arg == nil {
		return true
	}
	public := isPublic(ctx, node)

	var leaves []useLeaf
	flattenUseTree(ctx, arg, nil, false, &leaves)

	for _, leaf := range leaves {
		if len(leaf.segs) == 0 || leaf.segs[0] == "" {
			continue
		}
		w.out.Imports = append(w.out.Imports, w.importFact(leaf, public))
		if public {
			w.out.Exports = append(w.out.Exports, w.exportFact(leaf))
		}
	}
	return true
}

func (w *walker) importFact(leaf useLeaf, public bool) facts.ImportFact {
	root := leaf.segs[0]
	rest := make([]string, len(leaf.segs)-1)
	copy(rest, leaf.segs[1:])

	full := strings.Join(leaf.segs, "::")
	if leaf.absolute {
		full = "::" + full
	}
	return facts.ImportFact{
		Root:       root,
		Segments:   rest,
		ModulePath: w.modulePath(),
		Internal:   IsInternalRoot(root),
		PublicUse:  public,
		Kind:       leaf.kind,
		FullPath:   full,
		Absolute:   leaf.absolute,
		Location:   w.ctx.Location(leaf.node),
	}
}

func (w *walker) exportFact(leaf useLeaf) facts.ExportFact {
	exported := leaf.segs[len(leaf.segs)-1]
	switch leaf.kind.Type {
	case facts.UseRename:
		exported = leaf.kind.Alias
	case facts.UseGlob:
		exported = "*"
	}
	return facts.ExportFact{
		ExportedAs: exported,
		SourcePath: strings.Join(leaf.segs, "::"),
		ModulePath: w.modulePath(),
		Location:   w.ctx.Location(leaf.node),
	}
}

// IsInternalRoot reports whether a path root refers to the current crate.
func IsInternalRoot(root string) bool {
	return root == "crate" || root == "self" || root == "super"
}

func flattenUseTree(ctx *parser.ExtractionContext, node *sitter.Node, prefix []string, absolute bool, out *[]useLeaf) {
	if node == nil {
		return
	}
	emit := func(segs []string, kind facts.UseKind, abs bool) {
		all := make([]string, 0, len(prefix)+len(segs))
		all = append(all, prefix...)
		all = append(all, segs...)
		*out = append(*out, useLeaf{segs: all, kind: kind, absolute: abs, node: node})
	}

	switch node.Kind() {
	case "self":
		// `{self}` re-imports the enclosing path itself.
		if len(prefix) > 0 {
			emit(nil, facts.UseKind{Type: facts.UseName}, absolute)
			return
		}
		emit([]string{"self"}, facts.UseKind{Type: facts.UseName}, absolute)

	case "identifier", "crate", "super", "metavariable":
		emit([]string{ctx.Text(node)}, facts.UseKind{Type: facts.UseName}, absolute)

	case "scoped_identifier":
		segs, abs := pathSegments(ctx, node)
		emit(segs, facts.UseKind{Type: facts.UseName}, absolute || abs && len(prefix) == 0)

	case "use_as_clause":
		segs, abs := pathSegments(ctx, node.ChildByFieldName("path"))
		alias := ctx.Text(node.ChildByFieldName("alias"))
		emit(segs, facts.UseKind{Type: facts.UseRename, Alias: alias}, absolute || abs && len(prefix) == 0)

	case "use_wildcard":
		var segs []string
		abs := false
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if isComment(child) {
				continue
			}
			segs, abs = pathSegments(ctx, child)
			break
		}
		if node.ChildCount() > 0 && node.Child(0).Kind() == "::" {
			abs = true
		}
		segs = append(segs, "*")
		emit(segs, facts.UseKind{Type: facts.UseGlob}, absolute || abs && len(prefix) == 0)

	case "use_list":
		for i := uint(0); i < node.NamedChildCount(); i++ {
			child := node.NamedChild(i)
			if isComment(child) {
				continue
			}
			flattenUseTree(ctx, child, prefix, absolute, out)
		}

	case "scoped_use_list":
		next := append([]string{}, prefix...)
		abs := absolute
		if p := node.ChildByFieldName("path"); p != nil {
			segs, pathAbs := pathSegments(ctx, p)
			next = append(next, segs...)
			abs = abs || pathAbs && len(prefix) == 0
		} else if len(prefix) == 0 {
			abs = true
		}
		flattenUseTree(ctx, node.ChildByFieldName("list"), next, abs, out)
	}
}
