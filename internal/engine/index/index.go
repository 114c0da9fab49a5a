// Package index maps a raw (file, line, column) back to the function that
// encloses it, without re-running extraction.
package index

import (
	"sort"

	"klepto/internal/engine/extract"
	"klepto/internal/engine/facts"
)

// Position is an inclusive 1-based (line, column) pair.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) before(o Position) bool {
	return p.Line < o.Line || (p.Line == o.Line && p.Column < o.Column)
}

type FunctionSpan struct {
	FQName string       `json:"fq_name"`
	Public bool         `json:"is_public"`
	Kind   facts.FnKind `json:"kind"`
	Path   string       `json:"path"`
	Start  *Position    `json:"start,omitempty"`
	End    *Position    `json:"end,omitempty"`
}

// Contains reports whether loc lies inside the span, both ends inclusive.
// A span or location without position data never matches.
func (s FunctionSpan) Contains(loc facts.Location) bool {
	if s.Path != loc.Path || s.Start == nil || s.End == nil || loc.Line == nil || loc.Column == nil {
		return false
	}
	p := Position{Line: *loc.Line, Column: *loc.Column}
	return !p.before(*s.Start) && !s.End.before(p)
}

func (s FunctionSpan) lineExtent() int {
	return s.End.Line - s.Start.Line
}

// Index holds spans grouped by file, each group ordered by start line.
type Index struct {
	byFile map[string][]FunctionSpan
	files  []string
}

func New() *Index {
	return &Index{byFile: make(map[string][]FunctionSpan)}
}

// FromDeclarations builds the index of a single unit.
func FromDeclarations(path string, decls []extract.Declaration) *Index {
	spans := make([]FunctionSpan, 0, len(decls))
	for _, d := range decls {
		spans = append(spans, FunctionSpan{
			FQName: d.FQName,
			Public: d.Public,
			Kind:   d.Kind,
			Path:   path,
			Start:  toPosition(d.Start),
			End:    toPosition(d.End),
		})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return startLine(spans[i]) < startLine(spans[j])
	})

	idx := New()
	idx.add(path, spans)
	return idx
}

func toPosition(loc facts.Location) *Position {
	if loc.Line == nil || loc.Column == nil {
		return nil
	}
	return &Position{Line: *loc.Line, Column: *loc.Column}
}

func startLine(s FunctionSpan) int {
	if s.Start == nil {
		return 0
	}
	return s.Start.Line
}

func (idx *Index) add(path string, spans []FunctionSpan) {
	if _, ok := idx.byFile[path]; !ok {
		idx.files = append(idx.files, path)
	}
	idx.byFile[path] = append(idx.byFile[path], spans...)
}

// Merge appends other's spans file by file.
func (idx *Index) Merge(other *Index) {
	if other == nil {
		return
	}
	for _, path := range other.files {
		idx.add(path, other.byFile[path])
	}
}

// Lookup returns the containing span with the smallest line extent. Equal
// extents prefer the span starting later (the inner of two same-line
// functions), then insertion order.
func (idx *Index) Lookup(loc facts.Location) (FunctionSpan, bool) {
	var (
		best  FunctionSpan
		found bool
	)
	for _, s := range idx.byFile[loc.Path] {
		if !s.Contains(loc) {
			continue
		}
		if !found || s.lineExtent() < best.lineExtent() ||
			(s.lineExtent() == best.lineExtent() && best.Start.before(*s.Start)) {
			best, found = s, true
		}
	}
	return best, found
}

// Spans returns the spans of one file in index order.
func (idx *Index) Spans(path string) []FunctionSpan {
	out := make([]FunctionSpan, len(idx.byFile[path]))
	copy(out, idx.byFile[path])
	return out
}

// Files lists indexed files in merge order.
func (idx *Index) Files() []string {
	out := make([]string, len(idx.files))
	copy(out, idx.files)
	return out
}

func (idx *Index) Len() int {
	n := 0
	for _, spans := range idx.byFile {
		n += len(spans)
	}
	return n
}
