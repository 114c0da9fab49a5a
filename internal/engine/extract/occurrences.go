package extract

import (
	"strings"

	"klepto/internal/engine/facts"
	"klepto/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func containsSep(path string) bool {
	return strings.Contains(path, "::")
}

func (w *walker) handleMacroDefinition(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		name = "<macro>"
	}
	w.out.MacroDefs = append(w.out.MacroDefs, facts.MacroDefFact{
		Name:       name,
		ModulePath: w.modulePath(),
		Location:   ctx.Location(node),
	})
	return true
}

func (w *walker) handleMacroInvocation(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	target := node.ChildByFieldName("macro")
	segs, _ := pathSegments(ctx, target)

	name := "<macro>"
	var path *string
	if len(segs) > 0 {
		name = segs[len(segs)-1]
		joined := strings.Join(segs, "::")
		path = &joined
		// The macro path itself is a path reference too.
		w.recordPath(joined, target)
	}

	w.out.MacroInvocations = append(w.out.MacroInvocations, facts.MacroInvocationFact{
		Name:       name,
		Path:       path,
		ModulePath: w.modulePath(),
		Location:   ctx.Location(node),
		Scope:      w.scope(),
	})
	// Token trees are not parsed further.
	return true
}

func (w *walker) handleCall(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return false
	}
	callee := ctx.CompactText(fn)
	if method := methodName(fn); method != nil {
		callee = ctx.Text(method)
	}
	w.out.Calls = append(w.out.Calls, facts.CallOccurrenceFact{
		Callee:     callee,
		ModulePath: w.modulePath(),
		Location:   ctx.Location(node),
		Scope:      w.scope(),
	})
	return false
}

// methodName returns the method identifier of a `recv.method(..)` or
// `recv.method::<T>(..)` call, or nil for plain calls.
func methodName(fn *sitter.Node) *sitter.Node {
	switch fn.Kind() {
	case "field_expression":
		return fn.ChildByFieldName("field")
	case "generic_function":
		if inner := fn.ChildByFieldName("function"); inner != nil && inner.Kind() == "field_expression" {
			return inner.ChildByFieldName("field")
		}
	}
	return nil
}

// handleAttribute records the attribute's own path (`tokio::main`,
// `tracing::instrument`). Its arguments are token trees and stay opaque.
func (w *walker) handleAttribute(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	attr := parser.ChildOfKind(node, "attribute")
	if attr == nil || attr.NamedChildCount() == 0 {
		return true
	}
	path := attr.NamedChild(0)
	switch path.Kind() {
	case "identifier", "scoped_identifier":
		w.recordPath(renderPath(ctx, path), path)
	}
	return true
}

func (w *walker) handlePath(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	w.recordPath(renderPath(ctx, node), node)
	w.walkTypeArguments(node)
	return true
}

func (w *walker) recordPath(path string, node *sitter.Node) {
	if path == "" || !w.x.keep(path) {
		return
	}
	w.out.Paths = append(w.out.Paths, facts.PathOccurrenceFact{
		Path:       path,
		ModulePath: w.modulePath(),
		Location:   w.ctx.Location(node),
		Scope:      w.scope(),
	})
}

// walkTypeArguments descends into generic arguments carried by the segments
// of a path, e.g. the inner types of `Vec::<std::string::String>::new`.
func (w *walker) walkTypeArguments(node *sitter.Node) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch child.Kind() {
		case "type_arguments":
			w.engine.Walk(w.ctx, child)
		case "scoped_identifier", "scoped_type_identifier", "generic_type", "generic_type_with_turbofish", "bracketed_type":
			w.walkTypeArguments(child)
		}
	}
}
