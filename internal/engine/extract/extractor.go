// Package extract walks one parsed unit and emits the fact collections, each
// annotated with the module, type and function scope it was found in.
package extract

import (
	"klepto/internal/engine/facts"
	"klepto/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Options tunes the extractor.
type Options struct {
	// KeepPath decides which path references are recorded. Nil means
	// DefaultKeepPath.
	KeepPath func(path string) bool
}

var defaultSingleSegmentPaths = map[string]bool{
	"std": true, "core": true, "alloc": true,
	"crate": true, "self": true, "super": true,
}

// DefaultKeepPath keeps multi-segment paths and the well-known roots.
func DefaultKeepPath(path string) bool {
	return containsSep(path) || defaultSingleSegmentPaths[path]
}

// KeepPathWith extends the default filter with extra single-segment names.
func KeepPathWith(extra []string) func(string) bool {
	if len(extra) == 0 {
		return DefaultKeepPath
	}
	allow := make(map[string]bool, len(extra))
	for _, name := range extra {
		allow[name] = true
	}
	return func(path string) bool {
		return DefaultKeepPath(path) || allow[path]
	}
}

// Declaration is one function-like item together with its full extent.
// Nested functions are included.
type Declaration struct {
	FQName string
	Public bool
	Kind   facts.FnKind
	Start  facts.Location
	End    facts.Location
}

type Extractor struct {
	crateID string
	keep    func(string) bool
}

func New(crateID string, opts Options) *Extractor {
	keep := opts.KeepPath
	if keep == nil {
		keep = DefaultKeepPath
	}
	return &Extractor{crateID: crateID, keep: keep}
}

func (x *Extractor) CrateID() string {
	return x.crateID
}

// Extract produces the facts and declarations of one unit. It never fails;
// node shapes it does not recognize are skipped.
func (x *Extractor) Extract(unit *parser.Unit) (facts.Set, []Declaration) {
	w := x.newWalker(unit)
	w.engine.Walk(w.ctx, unit.Root())
	w.out.NoStd = unit.NoStd
	return w.out, w.decls
}

// Declarations returns only the function extents of a unit.
func (x *Extractor) Declarations(unit *parser.Unit) []Declaration {
	_, decls := x.Extract(unit)
	return decls
}

type fnScope struct {
	fq     string
	public bool
}

type walker struct {
	x      *Extractor
	ctx    *parser.ExtractionContext
	engine *parser.ExtractorEngine

	modules   []string
	selfType  *string
	traitType *string
	inTrait   *string
	fn        *fnScope
	fnDepth   int

	out   facts.Set
	decls []Declaration
}

func (x *Extractor) newWalker(unit *parser.Unit) *walker {
	w := &walker{x: x, ctx: parser.NewExtractionContext(unit)}
	w.engine = parser.NewExtractorEngine(map[string]parser.NodeHandler{
		"mod_item":                 w.handleMod,
		"impl_item":                w.handleImpl,
		"trait_item":               w.handleTrait,
		"function_item":            w.handleFreeFunction,
		"function_signature_item":  w.handleForeignFunction,
		"use_declaration":          w.handleUse,
		"macro_definition":         w.handleMacroDefinition,
		"macro_invocation":         w.handleMacroInvocation,
		"call_expression":          w.handleCall,
		"scoped_identifier":        w.handlePath,
		"scoped_type_identifier":   w.handlePath,
		"identifier":               w.handlePath,
		"type_identifier":          w.handlePath,
		"self":                     w.handlePath,
		"self_parameter":           skip,
		"visibility_modifier":      skip,
		"attribute_item":           w.handleAttribute,
		"inner_attribute_item":     w.handleAttribute,
		"extern_crate_declaration": skip,
	})
	return w
}

func skip(*parser.ExtractionContext, *sitter.Node) bool { return true }

func (w *walker) scope() facts.Scope {
	if w.fn == nil {
		return facts.Scope{}
	}
	fq, public := w.fn.fq, w.fn.public
	return facts.Scope{EnclosingFn: &fq, EnclosingPublic: &public}
}

func (w *walker) modulePath() []string {
	out := make([]string, len(w.modules))
	copy(out, w.modules)
	return out
}

func (w *walker) handleMod(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	body := node.ChildByFieldName("body")
	if body == nil {
		// `mod x;` lives in another file; nothing to nest.
		return true
	}
	w.modules = append(w.modules, ctx.Text(node.ChildByFieldName("name")))
	w.engine.WalkChildren(ctx, body)
	w.modules = w.modules[:len(w.modules)-1]
	return true
}

func (w *walker) handleImpl(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	prevSelf, prevTrait := w.selfType, w.traitType

	self := selfTypeName(ctx, node.ChildByFieldName("type"))
	if self == "" {
		self = "<impl>"
	}
	w.selfType = &self
	w.traitType = nil
	if tr := node.ChildByFieldName("trait"); tr != nil {
		name := renderPath(ctx, tr)
		w.traitType = &name
	}

	body := node.ChildByFieldName("body")
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if sameNode(child, body) {
			continue
		}
		w.engine.Walk(ctx, child)
	}
	if body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			child := body.Child(i)
			if child.Kind() == "function_item" {
				w.function(child, w.implKind())
				continue
			}
			w.engine.Walk(ctx, child)
		}
	}

	w.selfType, w.traitType = prevSelf, prevTrait
	return true
}

func (w *walker) implKind() facts.FnKind {
	kind := facts.FnKind{Type: facts.ImplMethod, SelfType: "<impl>"}
	if w.selfType != nil {
		kind.SelfType = *w.selfType
	}
	if w.traitType != nil {
		tr := *w.traitType
		kind.TraitType = &tr
	}
	return kind
}

func (w *walker) handleTrait(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	prev := w.inTrait
	name := ctx.Text(node.ChildByFieldName("name"))
	if name == "" {
		name = "<trait>"
	}
	w.inTrait = &name

	body := node.ChildByFieldName("body")
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if sameNode(child, body) {
			continue
		}
		w.engine.Walk(ctx, child)
	}
	if body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			child := body.Child(i)
			switch child.Kind() {
			case "function_item", "function_signature_item":
				w.function(child, facts.FnKind{Type: facts.TraitMethod, TraitName: name})
			default:
				w.engine.Walk(ctx, child)
			}
		}
	}

	w.inTrait = prev
	return true
}

// handleFreeFunction covers functions reached by the generic walk: module
// level items and functions nested in bodies. Methods are routed by the impl
// and trait handlers.
func (w *walker) handleFreeFunction(_ *parser.ExtractionContext, node *sitter.Node) bool {
	w.function(node, facts.FnKind{Type: facts.FreeFn})
	return true
}

// handleForeignFunction sees bodiless signatures outside traits, i.e. items
// of `extern "C" { ... }` blocks. They are not crate functions; only the
// paths in their signatures are recorded.
func (w *walker) handleForeignFunction(ctx *parser.ExtractionContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if sameNode(child, nameNode) {
			continue
		}
		w.engine.Walk(ctx, child)
	}
	return true
}

func (w *walker) function(node *sitter.Node, kind facts.FnKind) {
	ctx := w.ctx
	nameNode := node.ChildByFieldName("name")
	name := ctx.Text(nameNode)
	public := kind.Type == facts.TraitMethod || isPublic(ctx, node)
	fq := facts.FQName(w.x.crateID, w.modules, kind, name)

	w.decls = append(w.decls, Declaration{
		FQName: fq,
		Public: public,
		Kind:   kind,
		Start:  ctx.Location(node),
		End:    ctx.EndLocation(node),
	})

	// Items nested inside bodies are not part of the crate's API.
	if w.fnDepth == 0 {
		w.out.Functions = append(w.out.Functions, w.functionFact(node, name, fq, public, kind))
	}

	prevFn := w.fn
	w.fn = &fnScope{fq: fq, public: public}
	w.fnDepth++
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if sameNode(child, nameNode) {
			continue
		}
		w.engine.Walk(ctx, child)
	}
	w.fnDepth--
	w.fn = prevFn
}

func (w *walker) functionFact(node *sitter.Node, name, fq string, public bool, kind facts.FnKind) facts.FunctionFact {
	ctx := w.ctx
	fact := facts.FunctionFact{
		Name:       name,
		FQName:     fq,
		Public:     public,
		Kind:       kind,
		ModulePath: w.modulePath(),
		Signature:  signatureText(ctx, node),
		Location:   ctx.Location(node),
		Args:       []string{},
	}

	if mods := parser.ChildOfKind(node, "function_modifiers"); mods != nil {
		for i := uint(0); i < mods.ChildCount(); i++ {
			switch ctx.Text(mods.Child(i)) {
			case "async":
				fact.Async = true
			case "unsafe":
				fact.Unsafe = true
			case "const":
				fact.Const = true
			}
		}
	}
	if tp := node.ChildByFieldName("type_parameters"); tp != nil && tp.NamedChildCount() > 0 {
		fact.Generic = true
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			p := params.NamedChild(i)
			if isComment(p) || p.Kind() == "attribute_item" {
				continue
			}
			fact.Args = append(fact.Args, ctx.CompactText(p))
		}
	}
	if ret := node.ChildByFieldName("return_type"); ret != nil {
		text := ctx.CompactText(ret)
		fact.ReturnType = &text
	}
	fact.Attrs, fact.HasDocs = leadingAttributes(ctx, node)
	return fact
}
