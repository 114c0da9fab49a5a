// Package report renders findings, coverage and API diffs for people and
// for CI tooling.
package report

import (
	"fmt"
	"io"
	"strings"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/rules"
	"klepto/internal/shared/util"
	"klepto/internal/ui/report/formats"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatSARIF    = "sarif"
)

type Data = formats.ReportData

type Options struct {
	// Registry names SARIF rules; nil falls back to the codes.
	Registry            *rules.Registry
	CollapsibleSections bool
}

// Render produces the report bytes for format.
func Render(format string, data Data, opts Options) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatTable, "":
		out := formats.Table(data.Findings)
		if data.Diff != nil {
			out += "\n" + formats.DiffMarkdown(*data.Diff)
		}
		return []byte(out), nil
	case FormatJSON:
		return formats.JSONReport(data)
	case FormatMarkdown:
		return []byte(formats.NewMarkdownGenerator().Generate(data, formats.MarkdownOptions{
			CollapsibleSections: opts.CollapsibleSections,
		})), nil
	case FormatSARIF:
		return formats.GenerateSARIF(data.ProjectRoot, data.Findings, opts.Registry)
	}
	return nil, (&kerrors.DomainError{
		Code:    kerrors.CodeNotSupported,
		Message: "unsupported report format",
	}).WithContext("format", format)
}

func Write(w io.Writer, format string, data Data, opts Options) error {
	out, err := Render(format, data, opts)
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return kerrors.Wrap(err, kerrors.CodeIO, "write report")
	}
	return nil
}

// WriteFile renders to path, creating parent directories.
func WriteFile(path, format string, data Data, opts Options) error {
	out, err := Render(format, data, opts)
	if err != nil {
		return err
	}
	if err := util.WriteFileWithDirs(path, out, 0o644); err != nil {
		return kerrors.WrapPath(err, kerrors.CodeIO, "write report", path)
	}
	return nil
}

// Summary is the compact Markdown block injected into tracked documents: a
// one-line tally followed by the findings table in a text fence.
func Summary(data Data) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**: %d finding(s)", nonEmpty(data.CrateName, "crate"), len(data.Findings))
	if data.HasCoverage {
		fmt.Fprintf(&b, ", doc coverage %.1f%%", data.DocCoverage)
	}
	b.WriteString("\n\n```text\n")
	b.WriteString(formats.Table(data.Findings))
	b.WriteString("```\n")
	return b.String()
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
