package extract

import (
	"strings"

	"klepto/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// isPublic is true only for a plain `pub` modifier. pub(crate), pub(super)
// and pub(in ..) do not make an item externally visible.
func isPublic(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	vis := parser.ChildOfKind(node, "visibility_modifier")
	return vis != nil && strings.TrimSpace(ctx.Text(vis)) == "pub"
}

// pathSegments renders a path node into its identifier segments. Generic
// arguments are dropped. absolute is set for a leading `::`.
func pathSegments(ctx *parser.ExtractionContext, node *sitter.Node) (segs []string, absolute bool) {
	if node == nil {
		return nil, false
	}
	switch node.Kind() {
	case "scoped_identifier", "scoped_type_identifier":
		if prefix := node.ChildByFieldName("path"); prefix != nil {
			segs, absolute = pathSegments(ctx, prefix)
		} else {
			absolute = true
		}
		if name := node.ChildByFieldName("name"); name != nil {
			segs = append(segs, ctx.Text(name))
		}
		return segs, absolute
	case "generic_type", "generic_type_with_turbofish":
		return pathSegments(ctx, node.ChildByFieldName("type"))
	case "identifier", "type_identifier", "self", "super", "crate", "metavariable", "primitive_type":
		return []string{ctx.Text(node)}, false
	default:
		return []string{ctx.CompactText(node)}, false
	}
}

func renderPath(ctx *parser.ExtractionContext, node *sitter.Node) string {
	segs, _ := pathSegments(ctx, node)
	return strings.Join(segs, "::")
}

// selfTypeName is the terminal identifier of a path type, or the full
// rendered type text for anything else (references, tuples, slices).
func selfTypeName(ctx *parser.ExtractionContext, ty *sitter.Node) string {
	if ty == nil {
		return ""
	}
	switch ty.Kind() {
	case "type_identifier":
		return ctx.Text(ty)
	case "scoped_type_identifier":
		return ctx.Text(ty.ChildByFieldName("name"))
	case "generic_type":
		return selfTypeName(ctx, ty.ChildByFieldName("type"))
	default:
		return ctx.CompactText(ty)
	}
}

// leadingAttributes collects the outer attributes and doc comments directly
// preceding an item, in source order. Doc comments count as "doc" attributes.
func leadingAttributes(ctx *parser.ExtractionContext, node *sitter.Node) (attrs []string, hasDocs bool) {
	var reversed []string
scan:
	for s := node.PrevSibling(); s != nil; s = s.PrevSibling() {
		switch s.Kind() {
		case "attribute_item":
			name := attributeName(ctx, s)
			if name == "doc" {
				hasDocs = true
			}
			reversed = append(reversed, name)
		case "line_comment", "block_comment":
			if isOuterDocComment(ctx.Text(s)) {
				hasDocs = true
				reversed = append(reversed, "doc")
			}
		default:
			break scan
		}
	}
	attrs = make([]string, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		attrs = append(attrs, reversed[i])
	}
	return attrs, hasDocs
}

func attributeName(ctx *parser.ExtractionContext, item *sitter.Node) string {
	attr := parser.ChildOfKind(item, "attribute")
	if attr == nil || attr.NamedChildCount() == 0 {
		return ""
	}
	return renderPath(ctx, attr.NamedChild(0))
}

func isOuterDocComment(text string) bool {
	switch {
	case strings.HasPrefix(text, "///"):
		return !strings.HasPrefix(text, "////")
	case strings.HasPrefix(text, "/**"):
		return !strings.HasPrefix(text, "/***") && !strings.HasPrefix(text, "/**/")
	default:
		return false
	}
}

// signatureText is the function header without visibility or body, with
// whitespace runs collapsed.
func signatureText(ctx *parser.ExtractionContext, node *sitter.Node) string {
	start := node.StartByte()
	if vis := parser.ChildOfKind(node, "visibility_modifier"); vis != nil {
		if next := vis.NextSibling(); next != nil {
			start = next.StartByte()
		}
	}
	end := node.EndByte()
	if body := node.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	} else if n := node.ChildCount(); n > 0 {
		if last := node.Child(n - 1); last != nil && last.Kind() == ";" {
			end = last.StartByte()
		}
	}
	if end < start {
		end = start
	}
	return strings.Join(strings.Fields(string(ctx.Source[start:end])), " ")
}

func isComment(node *sitter.Node) bool {
	k := node.Kind()
	return k == "line_comment" || k == "block_comment"
}

// sameNode compares two children of the same parent.
func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}
