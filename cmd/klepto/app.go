package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"klepto/internal/core/config"
	kerrors "klepto/internal/core/errors"
	"klepto/internal/core/watcher"
	"klepto/internal/data/history"
	"klepto/internal/engine/analysis"
	"klepto/internal/engine/extract"
	"klepto/internal/engine/ingest"
	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
	"klepto/internal/engine/workspace"
	"klepto/internal/shared/observability"
	"klepto/internal/shared/util"
	"klepto/internal/shared/version"
	"klepto/internal/ui/report"
)

// Result is one completed analysis run.
type Result struct {
	Analysis *analysis.Analysis
	Findings []rules.Finding
	Coverage analysis.DocCoverage
	Diff     *snapshot.Diff
	At       time.Time
	Duration time.Duration
}

type App struct {
	Config *config.Config
	Paths  config.ResolvedPaths

	registry   *rules.Registry
	history    *history.Store
	baseline   *snapshot.Snapshot
	limiter    *util.Limiter
	watcher    *watcher.Watcher
	teaProgram atomic.Pointer[tea.Program]
	server     *observability.Server
	out        io.Writer

	mu sync.Mutex
}

func NewApp(cfg *config.Config, paths config.ResolvedPaths, out io.Writer) (*App, error) {
	a := &App{
		Config:   cfg,
		Paths:    paths,
		registry: rules.DefaultRegistry(),
		limiter:  util.NewLimiter(cfg.Watch.MaxRunsPerSec, 1),
		out:      out,
	}
	if cfg.History.Enabled {
		store, err := history.Open(paths.HistoryPath, cfg.History.BusyTimeout)
		if err != nil {
			return nil, kerrors.WrapPath(err, kerrors.CodeIO, "open history", paths.HistoryPath)
		}
		a.history = store
	}
	return a, nil
}

func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	if a.history != nil {
		_ = a.history.Close()
	}
}

// LoadBaseline pins the snapshot every run is diffed against.
func (a *App) LoadBaseline(path string) error {
	snap, err := snapshot.Load(path)
	if err != nil {
		return err
	}
	a.baseline = &snap
	return nil
}

func (a *App) scannerOptions() ingest.Options {
	cfg := a.Config
	return ingest.Options{
		CrateName:         cfg.CrateName,
		Roots:             a.Paths.Roots,
		Include:           cfg.Scan.Include,
		Exclude:           cfg.Scan.Exclude,
		ExcludeGenerated:  cfg.Scan.ExcludeGenerated,
		FollowLinks:       cfg.Scan.FollowLinks,
		MaxFileSize:       cfg.Scan.MaxFileSize,
		IgnoreParseErrors: cfg.Scan.IgnoreParseErrors,
		OnlyNewest:        cfg.Scan.OnlyNewest,
		Workers:           cfg.Scan.Workers,
		WorkspaceRoot:     a.Paths.WorkspaceRoot,
		Members:           cfg.Workspace.Members,
		SourceDirs: workspace.SourceDirs{
			Tests:    cfg.Scan.IncludeTests,
			Examples: cfg.Scan.IncludeExamples,
			Benches:  cfg.Scan.IncludeBenches,
		},
		Extract:       extract.Options{KeepPath: extract.KeepPathWith(cfg.Extract.KeepPaths)},
		Rules:         a.registry,
		DisabledRules: cfg.Rules.Disabled,
	}
}

func (a *App) projectKey(crateName string) string {
	if a.Config.History.ProjectKey != "" {
		return a.Config.History.ProjectKey
	}
	return crateName
}

// RunOnce scans, analyzes and evaluates rules, then persists the snapshot and
// history run when configured. The manifest is re-read every run so watch
// mode picks up Cargo.toml edits.
func (a *App) RunOnce(ctx context.Context) (*Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	scanner, err := ingest.New(a.scannerOptions())
	if err != nil {
		return nil, err
	}
	an, err := scanner.Build(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Analysis: an,
		Findings: an.Findings(ctx),
		Coverage: an.DocCoverage(),
		At:       time.Now().UTC(),
	}
	snap := an.Snapshot()
	key := a.projectKey(an.CrateName)

	base, err := a.baselineFor(key)
	if err != nil {
		slog.Warn("failed to load previous snapshot", "error", err)
	}
	if base != nil {
		d := snapshot.Compare(*base, snap)
		res.Diff = &d
	}

	if path := a.Paths.SnapshotPath; path != "" {
		if err := snap.Save(path); err != nil {
			return nil, err
		}
		slog.Debug("snapshot written", "path", path)
	}
	if a.history != nil {
		a.recordHistory(key, snap, res)
	}
	a.injectMarkdown(res)

	res.Duration = time.Since(start)
	slog.Info("analysis complete",
		"crate", an.CrateName,
		"files", len(an.Files),
		"functions", len(an.Facts.Functions),
		"findings", len(res.Findings),
		"doc_coverage", res.Coverage.Percent,
		"duration", res.Duration,
	)
	if a.server != nil {
		a.server.RecordRun(res.At)
	}
	return res, nil
}

func (a *App) baselineFor(key string) (*snapshot.Snapshot, error) {
	if a.baseline != nil {
		return a.baseline, nil
	}
	if a.history == nil {
		return nil, nil
	}
	latest, ok, err := a.history.LatestRun(key)
	if err != nil || !ok {
		return nil, err
	}
	snap, err := latest.Snapshot()
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (a *App) recordHistory(key string, snap snapshot.Snapshot, res *Result) {
	run, err := history.NewRun(snap, len(res.Findings), res.Coverage.Percent)
	if err != nil {
		slog.Warn("failed to encode history run", "error", err)
		return
	}
	run.Timestamp = res.At
	if _, err := a.history.SaveRun(key, run); err != nil {
		slog.Warn("failed to save history run", "path", a.history.Path(), "error", err, "corrupt", history.IsCorruptError(err))
		return
	}
	if retention := a.Config.History.Retention; retention > 0 {
		removed, err := a.history.Prune(key, res.At.Add(-retention))
		if err != nil {
			slog.Warn("failed to prune history", "error", err)
		} else if removed > 0 {
			slog.Debug("pruned history runs", "removed", removed)
		}
	}
}

func (a *App) reportData(res *Result) report.Data {
	return report.Data{
		CrateName:   res.Analysis.CrateName,
		ProjectRoot: a.Paths.ProjectRoot,
		Version:     version.Version,
		GeneratedAt: res.At,
		Findings:    res.Findings,
		HasCoverage: true,
		DocCoverage: res.Coverage.Percent,
		Diff:        res.Diff,
	}
}

func (a *App) injectMarkdown(res *Result) {
	if len(a.Config.Output.UpdateMarkdown) == 0 {
		return
	}
	summary := report.Summary(a.reportData(res))
	for i, target := range a.Config.Output.UpdateMarkdown {
		file := a.Paths.MarkdownFiles[i]
		if err := report.InjectSection(file, target.Marker, summary); err != nil {
			slog.Warn("failed to update markdown", "path", file, "marker", target.Marker, "error", err)
		}
	}
}

// Report renders res to the configured output file, or to stdout.
func (a *App) Report(res *Result) error {
	opts := report.Options{Registry: a.registry, CollapsibleSections: a.Config.Output.Collapsible}
	data := a.reportData(res)
	if path := a.Paths.OutputPath; path != "" {
		if err := report.WriteFile(path, a.Config.Output.Format, data, opts); err != nil {
			return err
		}
		slog.Info("report written", "path", path, "format", a.Config.Output.Format)
		return nil
	}
	return report.Write(a.out, a.Config.Output.Format, data, opts)
}

// PrintTrend renders the recorded history of this project.
func (a *App) PrintTrend(window time.Duration) error {
	if a.history == nil {
		return kerrors.New(kerrors.CodeValidationError, "trend requires history to be enabled")
	}
	key := a.Config.History.ProjectKey
	if key == "" {
		scanner, err := ingest.New(a.scannerOptions())
		if err != nil {
			return err
		}
		key = scanner.CrateName()
	}
	runs, err := a.history.LoadRuns(key, time.Time{})
	if err != nil {
		return err
	}
	trend, err := history.BuildTrendReport(key, runs, window)
	if err != nil {
		return err
	}

	var out []byte
	if a.Config.Output.Format == config.FormatJSON {
		out, err = report.RenderTrendJSON(trend)
	} else {
		out, err = report.RenderTrendTSV(trend)
	}
	if err != nil {
		return err
	}
	_, err = a.out.Write(out)
	return err
}

// watchRoots are the existing directories the watcher should observe.
func (a *App) watchRoots() []string {
	candidates := append([]string(nil), a.Paths.Roots...)
	if a.Paths.WorkspaceRoot != "" {
		candidates = append(candidates, a.Paths.WorkspaceRoot)
	}
	var roots []string
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			c = filepath.Dir(c)
		}
		roots = append(roots, c)
	}
	return roots
}

func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Watch.ExcludeDirs,
		a.Config.Watch.ExcludeFiles,
		func(paths []string) { a.HandleChanges(ctx, paths) },
	)
	if err != nil {
		return err
	}
	a.watcher = w
	return w.Watch(a.watchRoots())
}

// HandleChanges re-runs the analysis after a debounced batch of file events,
// at most MaxRunsPerSec times per second.
func (a *App) HandleChanges(ctx context.Context, paths []string) {
	slog.Info("changes detected", "files", len(paths))
	if err := a.limiter.Wait(ctx, 1); err != nil {
		return
	}

	res, err := a.RunOnce(ctx)
	if err != nil {
		slog.Error("re-analysis failed", "error", err)
		return
	}
	if p := a.teaProgram.Load(); p != nil {
		p.Send(newUpdateMsg(res))
		return
	}
	if err := a.Report(res); err != nil {
		slog.Error("failed to write report", "error", err)
	}
}

// exitCode is exitFindings when any finding reaches the fail_on severity.
func exitCode(findings []rules.Finding, failOn string) int {
	if failOn == "never" {
		return exitOK
	}
	threshold, err := rules.ParseSeverity(failOn)
	if err != nil {
		threshold = rules.Deny
	}
	for _, f := range findings {
		if f.Severity >= threshold {
			return exitFindings
		}
	}
	return exitOK
}
