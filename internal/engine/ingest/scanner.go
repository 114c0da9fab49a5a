package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/analysis"
	"klepto/internal/engine/classify"
	"klepto/internal/engine/parser"
	"klepto/internal/engine/workspace"
	"klepto/internal/shared/observability"
)

// Candidate is a discovered source file awaiting parsing.
type Candidate struct {
	Path     string
	Modified time.Time
}

type Scanner struct {
	opts      Options
	crateName string
	roots     []string
	include   []glob.Glob
	exclude   []glob.Glob
	names     classify.NameSets
	ws        *workspace.Workspace
	parser    *parser.Parser
}

// New validates options, compiles globs and resolves the workspace manifest.
// Nothing is scanned yet.
func New(opts Options) (*Scanner, error) {
	include := opts.Include
	if len(include) == 0 {
		include = DefaultInclude
	}
	exclude := append([]string(nil), opts.Exclude...)
	if opts.ExcludeGenerated {
		exclude = append(exclude, GeneratedPatterns...)
	}

	s := &Scanner{opts: opts, roots: append([]string(nil), opts.Roots...)}
	var err error
	if s.include, err = compileGlobs(include); err != nil {
		return nil, err
	}
	if s.exclude, err = compileGlobs(exclude); err != nil {
		return nil, err
	}

	wsNames := append([]string(nil), opts.WorkspaceNames...)
	depNames := append([]string(nil), opts.DependencyNames...)
	if strings.TrimSpace(opts.WorkspaceRoot) != "" {
		ws, err := workspace.Load(opts.WorkspaceRoot)
		if err != nil {
			return nil, err
		}
		members := ws.Select(opts.Members)
		if len(members) == 0 {
			return nil, (&kerrors.DomainError{
				Code:    kerrors.CodeNotFound,
				Message: "no workspace member matches the filter",
			}).WithContext("members", strings.Join(opts.Members, ","))
		}
		s.ws = ws
		s.roots = append(s.roots, workspace.Roots(members, opts.SourceDirs)...)
		wsNames = append(wsNames, ws.MemberNames()...)
		depNames = append(depNames, ws.Dependencies...)
	}
	if len(s.roots) == 0 {
		return nil, kerrors.New(kerrors.CodeValidationError, "no scan roots configured")
	}
	s.names = classify.NewNameSets(wsNames, depNames)
	s.crateName = resolveCrateName(opts.CrateName, s.ws)

	if s.parser, err = parser.NewParser(parser.NewGrammarLoader()); err != nil {
		return nil, err
	}
	return s, nil
}

func resolveCrateName(explicit string, ws *workspace.Workspace) string {
	if name := strings.TrimSpace(explicit); name != "" {
		return classify.Normalize(name)
	}
	if ws != nil && len(ws.Members) == 1 {
		return classify.Normalize(ws.Members[0].Name)
	}
	return "crate"
}

func (s *Scanner) CrateName() string {
	return s.crateName
}

func (s *Scanner) Roots() []string {
	return append([]string(nil), s.roots...)
}

func (s *Scanner) Names() classify.NameSets {
	return s.names
}

// Build runs the three ingestion phases: discover, parse in parallel, then
// merge and analyze in candidate order.
func (s *Scanner) Build(ctx context.Context) (*analysis.Analysis, error) {
	ctx, span := observability.Tracer.Start(ctx, "ingest.Build",
		trace.WithAttributes(attribute.String("crate", s.crateName)))
	defer span.End()

	candidates, err := s.Discover(ctx)
	if err != nil {
		return nil, err
	}
	units, err := s.Parse(ctx, candidates)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, u := range units {
			u.Close()
		}
	}()

	return analysis.Build(ctx, s.crateName, units, s.names, analysis.Options{
		Extract:       s.opts.Extract,
		Rules:         s.opts.Rules,
		DisabledRules: s.opts.DisabledRules,
	}), nil
}

// Discover walks the roots and returns matching files, newest first, capped
// at OnlyNewest. Missing roots are skipped.
func (s *Scanner) Discover(ctx context.Context) ([]Candidate, error) {
	_, span := observability.Tracer.Start(ctx, "ingest.Discover")
	defer span.End()

	seen := make(map[string]struct{})
	var out []Candidate
	add := func(path string, info fs.FileInfo) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, dup := seen[abs]; dup {
			return
		}
		if !s.accept(abs) {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, Candidate{Path: path, Modified: info.ModTime()})
	}

	for _, root := range s.roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				slog.Debug("scan root does not exist", "path", root)
				continue
			}
			return nil, kerrors.WrapPath(err, kerrors.CodeIO, "stat scan root", root)
		}
		if !info.IsDir() {
			add(root, info)
			continue
		}
		if err := s.walk(root, add, map[string]struct{}{}); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Modified.Equal(out[j].Modified) {
			return out[i].Modified.After(out[j].Modified)
		}
		return out[i].Path < out[j].Path
	})
	if n := s.opts.OnlyNewest; n > 0 && len(out) > n {
		out = out[:n]
	}
	span.SetAttributes(attribute.Int("candidates", len(out)))
	return out, nil
}

func (s *Scanner) walk(root string, add func(string, fs.FileInfo), visited map[string]struct{}) error {
	if real, err := filepath.EvalSymlinks(root); err == nil {
		if _, ok := visited[real]; ok {
			return nil
		}
		visited[real] = struct{}{}
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return kerrors.WrapPath(err, kerrors.CodeIO, "walk directory", path)
		}
		if d.IsDir() {
			if path != root && s.excludedDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !s.opts.FollowLinks {
				return nil
			}
			info, err := os.Stat(path)
			if err != nil {
				slog.Debug("skipping broken symlink", "path", path, "error", err)
				return nil
			}
			if info.IsDir() {
				real, err := filepath.EvalSymlinks(path)
				if err != nil {
					return nil
				}
				return s.walk(real, add, visited)
			}
			add(path, info)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return kerrors.WrapPath(err, kerrors.CodeIO, "stat source file", path)
		}
		add(path, info)
		return nil
	})
}

func (s *Scanner) accept(abs string) bool {
	slash := filepath.ToSlash(abs)
	if !s.parser.IsSupportedPath(abs) {
		return false
	}
	return matchAny(s.include, slash) && !matchAny(s.exclude, slash)
}

func (s *Scanner) excludedDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return matchAny(s.exclude, filepath.ToSlash(abs)+"/")
}

// Parse parses candidates on a bounded worker pool. Units come back in
// candidate order; oversized files are dropped. A failing file aborts the
// batch unless IgnoreParseErrors is set, in which case only that file is
// skipped.
func (s *Scanner) Parse(ctx context.Context, candidates []Candidate) ([]*parser.Unit, error) {
	ctx, span := observability.Tracer.Start(ctx, "ingest.Parse",
		trace.WithAttributes(attribute.Int("candidates", len(candidates))))
	defer span.End()

	results := make([]*parser.Unit, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(s.opts.workers(), len(candidates))))

	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			unit, err := s.parser.ParseFile(c.Path, c.Modified, s.opts.MaxFileSize)
			if err != nil {
				if s.opts.IgnoreParseErrors {
					slog.Warn("skipping unparsable file", "path", c.Path, "error", err)
					observability.FilesSkippedTotal.WithLabelValues(skipReason(err)).Inc()
					return nil
				}
				if kerrors.IsCode(err, kerrors.CodeParse) {
					return kerrors.AddContext(err, CtxHint, "set scan.ignore_parse_errors to skip unparsable files")
				}
				return err
			}
			if unit == nil {
				slog.Debug("skipping oversized file", "path", c.Path, "max_size", s.opts.MaxFileSize)
				observability.FilesSkippedTotal.WithLabelValues("too_large").Inc()
				return nil
			}
			observability.FilesScannedTotal.Inc()
			results[i] = unit
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, u := range results {
			u.Close()
		}
		return nil, err
	}

	units := make([]*parser.Unit, 0, len(results))
	for _, u := range results {
		if u != nil {
			units = append(units, u)
		}
	}
	span.SetAttributes(attribute.Int("units", len(units)))
	return units, nil
}

func skipReason(err error) string {
	switch kerrors.CodeOf(err) {
	case kerrors.CodeParse:
		return "parse_error"
	case kerrors.CodeIO:
		return "io_error"
	default:
		return "error"
	}
}
