package parser

import (
	"strings"

	"klepto/internal/engine/facts"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node for an extractor.
// Returns true if the handler has processed children and the walker should stop.
type NodeHandler func(ctx *ExtractionContext, node *sitter.Node) bool

// ExtractionContext carries the unit being walked and text/position helpers.
type ExtractionContext struct {
	Source            []byte
	Path              string
	ProcessedChildren bool // If true, the walker will skip this node's children
}

func NewExtractionContext(unit *Unit) *ExtractionContext {
	return &ExtractionContext{Source: unit.Source, Path: unit.Path}
}

func (c *ExtractionContext) ResetProcessedChildren() {
	c.ProcessedChildren = false
}

// ExtractorEngine walks the syntax tree and dispatches node handlers by kind.
type ExtractorEngine struct {
	handlers map[string]NodeHandler
}

func NewExtractorEngine(handlers map[string]NodeHandler) *ExtractorEngine {
	return &ExtractorEngine{handlers: handlers}
}

func (e *ExtractorEngine) Walk(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}

	ctx.ResetProcessedChildren()
	stop := false
	if handler, ok := e.handlers[node.Kind()]; ok {
		stop = handler(ctx, node)
	}

	if !stop && !ctx.ProcessedChildren {
		e.WalkChildren(ctx, node)
	}
}

// WalkChildren walks every child of node. Handlers that push scope call it
// between their push and pop and then return true.
func (e *ExtractorEngine) WalkChildren(ctx *ExtractionContext, node *sitter.Node) {
	if node == nil {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		e.Walk(ctx, node.Child(i))
	}
}

func (c *ExtractionContext) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.Source[node.StartByte():node.EndByte()])
}

// CompactText renders node text with every whitespace run collapsed to one space.
func (c *ExtractionContext) CompactText(node *sitter.Node) string {
	return strings.Join(strings.Fields(c.Text(node)), " ")
}

// Location is the 1-based start position of node.
func (c *ExtractionContext) Location(node *sitter.Node) facts.Location {
	p := node.StartPosition()
	return facts.At(c.Path, int(p.Row)+1, int(p.Column)+1)
}

// EndLocation is the 1-based position of the last character of node.
func (c *ExtractionContext) EndLocation(node *sitter.Node) facts.Location {
	p := node.EndPosition()
	col := int(p.Column)
	if col == 0 {
		col = 1
	}
	return facts.At(c.Path, int(p.Row)+1, col)
}

func (c *ExtractionContext) ChildText(node *sitter.Node, kind string) string {
	if child := ChildOfKind(node, kind); child != nil {
		return c.Text(child)
	}
	return ""
}

// ChildOfKind returns the first direct child of node with the given kind.
func ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}
