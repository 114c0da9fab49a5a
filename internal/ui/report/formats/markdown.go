package formats

import (
	"fmt"
	"strings"
	"time"

	"klepto/internal/engine/facts"
	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
)

// Markdown renders findings as a flat bullet list under "# Klepto Report".
func Markdown(findings []rules.Finding) string {
	var b strings.Builder
	b.WriteString("# Klepto Report\n\n")
	for _, f := range findings {
		b.WriteString(findingBullet(f, ""))
	}
	return b.String()
}

func findingBullet(f rules.Finding, projectRoot string) string {
	line, col := position(f.Location)
	return fmt.Sprintf("- **%s %s**: %s (`%s`:%d:%d)\n",
		f.Severity, f.Code, f.Message, relPath(projectRoot, f.Location.Path), line, col)
}

func position(loc facts.Location) (int, int) {
	line, col := 0, 0
	if loc.Line != nil {
		line = *loc.Line
	}
	if loc.Column != nil {
		col = *loc.Column
	}
	return line, col
}

type MarkdownOptions struct {
	// CollapsibleSections wraps long tables in <details>.
	CollapsibleSections bool
}

type MarkdownGenerator struct{}

func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{}
}

// Generate renders the full report: front matter, summary, findings grouped
// into a table, and the snapshot diff when present.
func (m *MarkdownGenerator) Generate(data ReportData, opts MarkdownOptions) string {
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now().UTC()
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("crate: " + nonEmpty(data.CrateName, "unknown") + "\n")
	b.WriteString("generated_at: " + data.GeneratedAt.UTC().Format(time.RFC3339) + "\n")
	b.WriteString("version: " + nonEmpty(data.Version, "unknown") + "\n")
	b.WriteString("---\n\n")
	b.WriteString("# Klepto Report\n\n")

	counts := map[rules.Severity]int{}
	for _, f := range data.Findings {
		counts[f.Severity]++
	}
	b.WriteString("## Summary\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("| --- | --- |\n")
	fmt.Fprintf(&b, "| Findings | %d |\n", len(data.Findings))
	fmt.Fprintf(&b, "| Deny | %d |\n", counts[rules.Deny])
	fmt.Fprintf(&b, "| Warn | %d |\n", counts[rules.Warn])
	fmt.Fprintf(&b, "| Info | %d |\n", counts[rules.Info])
	if data.HasCoverage {
		fmt.Fprintf(&b, "| Doc coverage | %.1f%% |\n", data.DocCoverage)
	}
	b.WriteString("\n")

	m.writeFindings(&b, data, opts.CollapsibleSections)
	if data.Diff != nil {
		b.WriteString(DiffMarkdown(*data.Diff))
	}
	return b.String()
}

func (m *MarkdownGenerator) writeFindings(b *strings.Builder, data ReportData, collapsible bool) {
	b.WriteString("## Findings\n")
	if len(data.Findings) == 0 {
		b.WriteString("No findings.\n\n")
		return
	}
	rows := make([]string, 0, len(data.Findings))
	for _, f := range data.Findings {
		line, col := position(f.Location)
		rows = append(rows, fmt.Sprintf("| %s | `%s` | `%s:%d:%d` | %s |\n",
			f.Severity, f.Code, relPath(data.ProjectRoot, f.Location.Path), line, col, escapeCell(f.Message)))
	}
	m.writeTableWithCollapse(
		b,
		"Finding details",
		collapsible,
		len(rows) > 10,
		[]string{"| Severity | Code | Location | Message |\n", "| --- | --- | --- | --- |\n"},
		rows,
	)
}

func (m *MarkdownGenerator) writeTableWithCollapse(
	b *strings.Builder,
	summary string,
	collapsible bool,
	collapse bool,
	header []string,
	rows []string,
) {
	if collapsible && collapse {
		b.WriteString("<details>\n")
		b.WriteString("<summary>")
		b.WriteString(summary)
		b.WriteString("</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapsible && collapse {
		b.WriteString("</details>\n\n")
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// DiffMarkdown summarizes an API snapshot diff.
func DiffMarkdown(d snapshot.Diff) string {
	var b strings.Builder
	b.WriteString("## API Changes\n")
	if d.Empty() {
		b.WriteString("No API changes.\n\n")
		return b.String()
	}
	fmt.Fprintf(&b, "%d change(s).\n\n", d.Changes())

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("### " + title + "\n")
		for _, item := range items {
			b.WriteString("- " + item + "\n")
		}
		b.WriteString("\n")
	}

	fnNames := func(fns []snapshot.FnFingerprint) []string {
		out := make([]string, 0, len(fns))
		for _, f := range fns {
			out = append(out, fmt.Sprintf("`%s`", f.FQName))
		}
		return out
	}
	exportNames := func(exports []snapshot.ExportFingerprint) []string {
		out := make([]string, 0, len(exports))
		for _, e := range exports {
			out = append(out, fmt.Sprintf("`%s` from `%s`", e.ExportedAs, e.SourcePath))
		}
		return out
	}
	quoted := func(paths []string) []string {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			out = append(out, "`"+p+"`")
		}
		return out
	}

	writeList("Added functions", fnNames(d.AddedFunctions))
	writeList("Removed functions", fnNames(d.RemovedFunctions))
	changed := make([]string, 0, len(d.ChangedSignatures))
	for _, c := range d.ChangedSignatures {
		changed = append(changed, fmt.Sprintf("`%s`: `%s` -> `%s`", c.New.FQName, c.Old.Signature, c.New.Signature))
	}
	writeList("Changed signatures", changed)
	writeList("Added exports", exportNames(d.AddedExports))
	writeList("Removed exports", exportNames(d.RemovedExports))
	writeList("Added imports", quoted(d.AddedImports))
	writeList("Removed imports", quoted(d.RemovedImports))
	return b.String()
}
