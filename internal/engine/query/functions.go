// Package query provides composable filters over merged facts. Every
// predicate narrows the result; a query with no predicates returns the whole
// collection.
package query

import (
	"regexp"
	"slices"
	"strings"

	"klepto/internal/engine/facts"
)

// FnQuery filters function facts. Builder methods mutate and return the
// receiver, so a query reads as one chain.
type FnQuery struct {
	fns   []facts.FunctionFact
	preds []func(*facts.FunctionFact) bool
}

func Functions(fns []facts.FunctionFact) *FnQuery {
	return &FnQuery{fns: fns}
}

func (q *FnQuery) where(p func(*facts.FunctionFact) bool) *FnQuery {
	q.preds = append(q.preds, p)
	return q
}

func (q *FnQuery) PublicOnly() *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Public })
}

func (q *FnQuery) NoDocs() *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return !f.HasDocs })
}

// InImpl keeps methods declared in an impl block for the named self type.
func (q *FnQuery) InImpl(selfType string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool {
		return f.Kind.Type == facts.ImplMethod && f.Kind.SelfType == selfType
	})
}

// ImplsTrait matches the rendered trait path of `impl Trait for T` blocks.
func (q *FnQuery) ImplsTrait(trait string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool {
		return f.Kind.Type == facts.ImplMethod && f.Kind.TraitType != nil && *f.Kind.TraitType == trait
	})
}

func (q *FnQuery) InTrait(name string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool {
		return f.Kind.Type == facts.TraitMethod && f.Kind.TraitName == name
	})
}

func (q *FnQuery) Named(name string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Name == name })
}

func (q *FnQuery) NameContains(s string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return strings.Contains(f.Name, s) })
}

func (q *FnQuery) NameMatches(re *regexp.Regexp) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return re.MatchString(f.Name) })
}

// Returns matches a substring of the return type; functions without one
// only match the empty string.
func (q *FnQuery) Returns(s string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool {
		ret := ""
		if f.ReturnType != nil {
			ret = *f.ReturnType
		}
		return strings.Contains(ret, s)
	})
}

func (q *FnQuery) TakesArg(s string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool {
		return slices.ContainsFunc(f.Args, func(a string) bool { return strings.Contains(a, s) })
	})
}

func (q *FnQuery) IsAsync(yes bool) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Async == yes })
}

func (q *FnQuery) IsUnsafe(yes bool) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Unsafe == yes })
}

func (q *FnQuery) IsConst(yes bool) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Const == yes })
}

func (q *FnQuery) IsGeneric(yes bool) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return f.Generic == yes })
}

func (q *FnQuery) HasAttr(name string) *FnQuery {
	return q.where(func(f *facts.FunctionFact) bool { return slices.Contains(f.Attrs, name) })
}

// Collect materializes the matching functions in fact order.
func (q *FnQuery) Collect() []facts.FunctionFact {
	out := make([]facts.FunctionFact, 0, len(q.fns))
next:
	for i := range q.fns {
		for _, p := range q.preds {
			if !p(&q.fns[i]) {
				continue next
			}
		}
		out = append(out, q.fns[i])
	}
	return out
}

// Filter collects and then applies an arbitrary predicate.
func (q *FnQuery) Filter(pred func(facts.FunctionFact) bool) []facts.FunctionFact {
	all := q.Collect()
	out := all[:0]
	for _, f := range all {
		if pred(f) {
			out = append(out, f)
		}
	}
	return out
}

func (q *FnQuery) Count() int {
	return len(q.Collect())
}
