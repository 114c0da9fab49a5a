// Package analysis merges per-unit extraction into one classified fact set
// and exposes the queries, views, snapshots and rules built on top of it.
package analysis

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"klepto/internal/engine/classify"
	"klepto/internal/engine/extract"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/index"
	"klepto/internal/engine/parser"
	"klepto/internal/engine/query"
	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
	"klepto/internal/shared/observability"
)

type Options struct {
	Extract extract.Options
	// Rules defaults to the built-in registry.
	Rules *rules.Registry
	// DisabledRules lists rule codes that Findings skips.
	DisabledRules []string
}

// Analysis is the merged, classified state of one run. It is read-only once
// Build returns.
type Analysis struct {
	CrateName string
	Facts     facts.Set
	Index     *index.Index
	Files     []string

	names    classify.NameSets
	registry *rules.Registry
	disabled []string
}

// Build extracts every unit in order, merges the results and classifies the
// merged imports once.
func Build(ctx context.Context, crateName string, units []*parser.Unit, names classify.NameSets, opts Options) *Analysis {
	_, span := observability.Tracer.Start(ctx, "analysis.Build",
		trace.WithAttributes(attribute.String("crate", crateName), attribute.Int("units", len(units))))
	defer span.End()

	a := &Analysis{
		CrateName: crateName,
		Index:     index.New(),
		names:     names,
		registry:  opts.Rules,
		disabled:  opts.DisabledRules,
	}
	if a.registry == nil {
		a.registry = rules.DefaultRegistry()
	}

	x := extract.New(crateName, opts.Extract)

	start := time.Now()
	for _, unit := range units {
		set, decls := x.Extract(unit)
		a.Facts.Merge(set)
		a.Index.Merge(index.FromDeclarations(unit.Path, decls))
		a.Files = append(a.Files, unit.Path)
	}
	observability.AnalysisDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	start = time.Now()
	classify.Classify(a.Facts.Imports, names)
	observability.AnalysisDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())

	c := a.Facts.Counts()
	for kind, n := range map[string]int{
		"functions":         c.Functions,
		"imports":           c.Imports,
		"exports":           c.Exports,
		"macro_defs":        c.MacroDefs,
		"macro_invocations": c.MacroInvocations,
		"paths":             c.Paths,
		"calls":             c.Calls,
	} {
		observability.FactsTotal.WithLabelValues(kind).Set(float64(n))
	}
	span.SetAttributes(attribute.Int("functions", c.Functions), attribute.Int("imports", c.Imports))
	return a
}

func (a *Analysis) NoStd() bool {
	return a.Facts.NoStd
}

func (a *Analysis) Functions() *query.FnQuery {
	return query.Functions(a.Facts.Functions)
}

func (a *Analysis) Imports() *query.ImportQuery {
	return query.Imports(a.Facts.Imports)
}

func (a *Analysis) PublicAPI() *query.FnQuery {
	return a.Functions().PublicOnly()
}

func (a *Analysis) UndocumentedPublicAPI() *query.FnQuery {
	return a.Functions().PublicOnly().NoDocs()
}

// PublicSurface is the set of `pub use` re-exports.
type PublicSurface struct {
	Exports []facts.ExportFact `json:"exports"`
}

func (a *Analysis) PublicSurface() PublicSurface {
	out := make([]facts.ExportFact, len(a.Facts.Exports))
	copy(out, a.Facts.Exports)
	return PublicSurface{Exports: out}
}

type DocCoverage struct {
	PublicTotal int     `json:"public_total"`
	Documented  int     `json:"documented"`
	Percent     float64 `json:"percent"`
}

// DocCoverage is exactly 100 when there is no public function.
func (a *Analysis) DocCoverage() DocCoverage {
	var d DocCoverage
	for _, f := range a.Facts.Functions {
		if !f.Public {
			continue
		}
		d.PublicTotal++
		if f.HasDocs {
			d.Documented++
		}
	}
	if d.PublicTotal == 0 {
		d.Percent = 100.0
	} else {
		d.Percent = float64(d.Documented) * 100.0 / float64(d.PublicTotal)
	}
	return d
}

func (a *Analysis) FindPaths(path string) []facts.PathOccurrenceFact {
	return query.FindPaths(&a.Facts, path)
}

func (a *Analysis) FindMacroInvocations(name string) []facts.MacroInvocationFact {
	return query.FindMacroInvocations(&a.Facts, name)
}

func (a *Analysis) FindCalls(needle string) []facts.CallOccurrenceFact {
	return query.FindCalls(&a.Facts, needle)
}

func (a *Analysis) Snapshot() snapshot.Snapshot {
	return snapshot.New(a.CrateName, &a.Facts)
}

// DiffSnapshot compares an older snapshot against the current state.
func (a *Analysis) DiffSnapshot(old snapshot.Snapshot) snapshot.Diff {
	return snapshot.Compare(old, a.Snapshot())
}

func (a *Analysis) Rules() *rules.Runner {
	return rules.NewRunner(a.registry, a.disabled...)
}

// Findings runs the enabled rules and counts the result per code.
func (a *Analysis) Findings(ctx context.Context) []rules.Finding {
	_, span := observability.Tracer.Start(ctx, "analysis.Findings")
	defer span.End()

	start := time.Now()
	findings := a.Rules().Run(&a.Facts)
	observability.AnalysisDuration.WithLabelValues("rules").Observe(time.Since(start).Seconds())

	for code, n := range rules.CountByCode(findings) {
		observability.FindingsTotal.WithLabelValues(code).Add(float64(n))
	}
	span.SetAttributes(attribute.Int("findings", len(findings)))
	return findings
}

func (a *Analysis) DependencyUseSites(roots []string) []classify.UseSite {
	return classify.DependencyUseSites(&a.Facts, roots)
}

func (a *Analysis) InternalUseSites() []classify.UseSite {
	return classify.InternalUseSites(&a.Facts, a.CrateName)
}

// ImportSummary summarizes the deduplicated imports.
func (a *Analysis) ImportSummary() classify.Summary {
	return classify.Summarize(classify.Unique(a.Facts.Imports))
}

// EnclosingFunction resolves a raw location to its innermost function.
func (a *Analysis) EnclosingFunction(loc facts.Location) (index.FunctionSpan, bool) {
	return a.Index.Lookup(loc)
}

// Names returns the name sets the imports were classified with.
func (a *Analysis) Names() classify.NameSets {
	return a.names
}
