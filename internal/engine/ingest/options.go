// Package ingest turns directories, files and Cargo workspaces into parsed
// units and hands them to the analysis.
package ingest

import (
	"runtime"
	"strings"

	"github.com/gobwas/glob"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/extract"
	"klepto/internal/engine/rules"
	"klepto/internal/engine/workspace"
)

// CtxHint is the error context key carrying a remediation hint.
const CtxHint = "hint"

// DefaultInclude matches every Rust source file.
var DefaultInclude = []string{"**/*.rs"}

// GeneratedPatterns are the build-output and codegen paths ExcludeGenerated
// adds to the exclude list.
var GeneratedPatterns = []string{
	"**/target/**",
	"**/OUT_DIR/**",
	"**/*bindings*.rs",
	"**/*pb*.rs",
}

type Options struct {
	// CrateName is the first fq-name segment. When empty it falls back to the
	// single workspace package name, then to "crate".
	CrateName string
	Roots     []string

	Include          []string
	Exclude          []string
	ExcludeGenerated bool

	FollowLinks       bool
	MaxFileSize       int64
	IgnoreParseErrors bool
	// OnlyNewest keeps the N most recently modified candidates when > 0.
	OnlyNewest int
	Workers    int

	WorkspaceRoot string
	Members       []string
	SourceDirs    workspace.SourceDirs

	// Extra names merged into the classifier input.
	WorkspaceNames  []string
	DependencyNames []string

	Extract       extract.Options
	Rules         *rules.Registry
	DisabledRules []string
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// compileGlobs compiles every pattern up front so a bad one fails before any
// file is touched.
func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, (&kerrors.DomainError{
				Code:    kerrors.CodeValidationError,
				Message: "invalid glob pattern",
				Err:     err,
			}).WithContext(kerrors.CtxPattern, p)
		}
		out = append(out, g)
	}
	return out, nil
}

func matchAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
