// Package facts holds the records produced by the extractor and read by every
// downstream engine component.
package facts

import (
	"fmt"
	"strings"
)

// Location is a 1-based position in a source file. Line and Column are nil
// when the parser could not supply position data.
type Location struct {
	Path   string `json:"path"`
	Line   *int   `json:"line,omitempty"`
	Column *int   `json:"column,omitempty"`
}

// At builds a fully positioned location.
func At(path string, line, column int) Location {
	return Location{Path: path, Line: &line, Column: &column}
}

// String renders path:line:col, using 0 for absent components.
func (l Location) String() string {
	line, col := 0, 0
	if l.Line != nil {
		line = *l.Line
	}
	if l.Column != nil {
		col = *l.Column
	}
	return fmt.Sprintf("%s:%d:%d", l.Path, line, col)
}

type FnKindType string

const (
	FreeFn      FnKindType = "free_fn"
	ImplMethod  FnKindType = "impl_method"
	TraitMethod FnKindType = "trait_method"
)

// FnKind says where a function-like item was declared.
// SelfType and TraitType are set for ImplMethod, TraitName for TraitMethod.
type FnKind struct {
	Type      FnKindType `json:"type"`
	SelfType  string     `json:"self_type,omitempty"`
	TraitType *string    `json:"trait_type,omitempty"`
	TraitName string     `json:"trait_name,omitempty"`
}

// Qualifier is the fq-name segment inserted between module path and name.
func (k FnKind) Qualifier() string {
	switch k.Type {
	case ImplMethod:
		return k.SelfType
	case TraitMethod:
		return k.TraitName
	default:
		return ""
	}
}

// FQName joins crate id, module path, qualifier and name with "::".
func FQName(crateID string, modulePath []string, kind FnKind, name string) string {
	parts := make([]string, 0, len(modulePath)+3)
	parts = append(parts, crateID)
	parts = append(parts, modulePath...)
	if q := kind.Qualifier(); q != "" {
		parts = append(parts, q)
	}
	parts = append(parts, name)
	return strings.Join(parts, "::")
}

type FunctionFact struct {
	Name       string   `json:"name"`
	FQName     string   `json:"fq_name"`
	Public     bool     `json:"is_public"`
	HasDocs    bool     `json:"has_docs"`
	Async      bool     `json:"is_async"`
	Unsafe     bool     `json:"is_unsafe"`
	Const      bool     `json:"is_const"`
	Generic    bool     `json:"is_generic"`
	Args       []string `json:"args"`
	ReturnType *string  `json:"return_ty,omitempty"`
	Kind       FnKind   `json:"kind"`
	ModulePath []string `json:"module_path"`
	Attrs      []string `json:"attrs"`
	Signature  string   `json:"signature"`
	Location   Location `json:"location"`
}

type UseKindType string

const (
	UseName   UseKindType = "name"
	UseGlob   UseKindType = "glob"
	UseRename UseKindType = "rename"
)

type UseKind struct {
	Type  UseKindType `json:"type"`
	Alias string      `json:"alias,omitempty"`
}

type Origin string

const (
	OriginInternal        Origin = "internal"
	OriginStd             Origin = "std"
	OriginCore            Origin = "core"
	OriginAlloc           Origin = "alloc"
	OriginWorkspaceMember Origin = "workspace_member"
	OriginDependency      Origin = "dependency"
	OriginUnknownExternal Origin = "unknown_external"
)

type ImportFact struct {
	Root       string   `json:"root"`
	Segments   []string `json:"segments"`
	ModulePath []string `json:"module_path"`
	Internal   bool     `json:"is_internal"`
	PublicUse  bool     `json:"is_public_use"`
	Kind       UseKind  `json:"kind"`
	FullPath   string   `json:"full_path"`
	Absolute   bool     `json:"is_absolute"`
	Location   Location `json:"location"`
	Origin     *Origin  `json:"origin,omitempty"`
}

type ExportFact struct {
	ExportedAs string   `json:"exported_as"`
	SourcePath string   `json:"source_path"`
	ModulePath []string `json:"module_path"`
	Location   Location `json:"location"`
}

type MacroDefFact struct {
	Name       string   `json:"name"`
	ModulePath []string `json:"module_path"`
	Location   Location `json:"location"`
}

// Scope is the enclosing-function annotation shared by occurrence facts.
// Both fields are nil for module-scope occurrences.
type Scope struct {
	EnclosingFn     *string `json:"enclosing_fn,omitempty"`
	EnclosingPublic *bool   `json:"enclosing_public,omitempty"`
}

// InPublicFn reports whether the occurrence sits inside a public function.
func (s Scope) InPublicFn() bool {
	return s.EnclosingPublic != nil && *s.EnclosingPublic
}

// Fn returns the enclosing function fq name or "".
func (s Scope) Fn() string {
	if s.EnclosingFn == nil {
		return ""
	}
	return *s.EnclosingFn
}

type MacroInvocationFact struct {
	Name       string   `json:"name"`
	Path       *string  `json:"path,omitempty"`
	ModulePath []string `json:"module_path"`
	Location   Location `json:"location"`
	Scope
}

type PathOccurrenceFact struct {
	Path       string   `json:"path"`
	ModulePath []string `json:"module_path"`
	Location   Location `json:"location"`
	Scope
}

type CallOccurrenceFact struct {
	Callee     string   `json:"callee"`
	ModulePath []string `json:"module_path"`
	Location   Location `json:"location"`
	Scope
}
