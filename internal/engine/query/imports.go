package query

import (
	"strings"

	"klepto/internal/engine/classify"
	"klepto/internal/engine/facts"
)

// ImportQuery filters import facts. Origin predicates only match imports the
// classifier has already seen.
type ImportQuery struct {
	imports []facts.ImportFact
	preds   []func(*facts.ImportFact) bool
}

func Imports(imports []facts.ImportFact) *ImportQuery {
	return &ImportQuery{imports: imports}
}

func (q *ImportQuery) where(p func(*facts.ImportFact) bool) *ImportQuery {
	q.preds = append(q.preds, p)
	return q
}

func (q *ImportQuery) Root(root string) *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return i.Root == root })
}

func (q *ImportQuery) InternalOnly() *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return i.Internal })
}

func (q *ImportQuery) PublicUseOnly() *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return i.PublicUse })
}

func (q *ImportQuery) FullPathStartsWith(prefix string) *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return strings.HasPrefix(i.FullPath, prefix) })
}

func (q *ImportQuery) Origin(o facts.Origin) *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return i.Origin != nil && *i.Origin == o })
}

func (q *ImportQuery) WorkspaceOnly() *ImportQuery {
	return q.Origin(facts.OriginWorkspaceMember)
}

func (q *ImportQuery) DepsOnly() *ImportQuery {
	return q.Origin(facts.OriginDependency)
}

// StdishOnly keeps std, core and alloc imports.
func (q *ImportQuery) StdishOnly() *ImportQuery {
	return q.where(func(i *facts.ImportFact) bool { return i.Origin != nil && classify.IsStdish(*i.Origin) })
}

func (q *ImportQuery) Collect() []facts.ImportFact {
	out := make([]facts.ImportFact, 0, len(q.imports))
next:
	for i := range q.imports {
		for _, p := range q.preds {
			if !p(&q.imports[i]) {
				continue next
			}
		}
		out = append(out, q.imports[i])
	}
	return out
}

func (q *ImportQuery) Filter(pred func(facts.ImportFact) bool) []facts.ImportFact {
	all := q.Collect()
	out := all[:0]
	for _, i := range all {
		if pred(i) {
			out = append(out, i)
		}
	}
	return out
}
