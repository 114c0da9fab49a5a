package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"klepto/internal/core/config"
	kerrors "klepto/internal/core/errors"
	"klepto/internal/shared/observability"
	"klepto/internal/shared/version"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitFindings = 2
)

type cliFlags struct {
	configPath   string
	crate        string
	format       string
	out          string
	snapshotPath string
	diffPath     string
	history      bool
	trend        time.Duration
	members      string
	disable      string
	watch        bool
	ui           bool
	verbose      bool
	version      bool
}

func parseFlags(fs *flag.FlagSet, args []string) (cliFlags, error) {
	var f cliFlags
	fs.StringVar(&f.configPath, "config", config.DefaultFileName, "Path to config file")
	fs.StringVar(&f.crate, "crate", "", "Crate name used as the first fq-name segment")
	fs.StringVar(&f.format, "format", "", "Report format: "+strings.Join(config.Formats(), ", "))
	fs.StringVar(&f.out, "out", "", "Write the report to this file instead of stdout")
	fs.StringVar(&f.snapshotPath, "snapshot", "", "Write the API snapshot JSON to this path")
	fs.StringVar(&f.diffPath, "diff", "", "Diff the API against this snapshot JSON")
	fs.BoolVar(&f.history, "history", false, "Record the run in the SQLite history")
	fs.DurationVar(&f.trend, "trend", 0, "Print the history trend with this moving-average window and exit")
	fs.StringVar(&f.members, "members", "", "Comma separated workspace members to analyze")
	fs.StringVar(&f.disable, "disable", "", "Comma separated rule codes to disable")
	fs.BoolVar(&f.watch, "watch", false, "Re-run the analysis when sources change")
	fs.BoolVar(&f.ui, "ui", false, "Enable terminal UI mode (implies -watch)")
	fs.BoolVar(&f.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&f.version, "version", false, "Print version and exit")
	err := fs.Parse(args)
	return f, err
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("klepto", flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags, err := parseFlags(fs, args)
	if err != nil {
		return exitFailure
	}
	if flags.version {
		fmt.Fprintf(stdout, "klepto %s\n", version.Version)
		return exitOK
	}

	closeLog := setupLogging(flags, stderr)
	defer closeLog()

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailure
	}
	config.ApplyEnvOverrides(cfg)
	applyFlags(cfg, flags, fs.Args())
	if err := config.Validate(cfg); err != nil {
		slog.Error("invalid configuration", "error", err)
		return exitFailure
	}

	cwd, err := os.Getwd()
	if err != nil {
		slog.Error("failed to determine working directory", "error", err)
		return exitFailure
	}
	paths, err := config.ResolvePaths(cfg, cwd)
	if err != nil {
		slog.Error("failed to resolve paths", "error", err)
		return exitFailure
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := cfg.Observability.OTLPEndpoint; endpoint != "" {
		shutdown, err := observability.InitTracing(ctx, endpoint, cfg.Observability.ServiceName)
		if err != nil {
			slog.Warn("tracing disabled", "endpoint", endpoint, "error", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdown(sctx)
			}()
		}
	}

	app, err := NewApp(cfg, paths, stdout)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		return exitFailure
	}
	defer app.Close()
	if flags.diffPath != "" {
		if err := app.LoadBaseline(config.ResolveRelative(cwd, flags.diffPath)); err != nil {
			slog.Error("failed to load baseline snapshot", "error", err)
			return exitFailure
		}
	}

	if flags.trend > 0 {
		if err := app.PrintTrend(flags.trend); err != nil {
			slog.Error("failed to build trend report", "error", err)
			return exitFailure
		}
		return exitOK
	}

	res, err := app.RunOnce(ctx)
	if err != nil {
		slog.Error("analysis failed", "error", err, "code", kerrors.CodeOf(err))
		return exitFailure
	}

	if !flags.watch && !flags.ui {
		if err := app.Report(res); err != nil {
			slog.Error("failed to write report", "error", err)
			return exitFailure
		}
		return exitCode(res.Findings, cfg.Rules.FailOn)
	}

	if cfg.Observability.MetricsAddr != "" {
		srv := observability.NewServer(cfg.Observability.MetricsAddr)
		if err := srv.Start(); err != nil {
			slog.Warn("metrics server disabled", "addr", cfg.Observability.MetricsAddr, "error", err)
		} else {
			app.server = srv
			srv.RecordRun(res.At)
			defer srv.Stop(context.Background())
		}
	}

	if !flags.ui {
		if err := app.Report(res); err != nil {
			slog.Error("failed to write report", "error", err)
		}
	}
	if err := app.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		return exitFailure
	}

	if flags.ui {
		if err := app.RunUI(ctx, res); err != nil {
			slog.Error("failed to run UI", "error", err)
			return exitFailure
		}
		return exitOK
	}
	<-ctx.Done()
	return exitOK
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if kerrors.IsCode(err, kerrors.CodeNotFound) && path == config.DefaultFileName {
		slog.Debug("no config file, using defaults", "path", path)
		return config.DefaultConfig(), nil
	}
	return nil, err
}

// applyFlags layers command-line values over the file and environment.
func applyFlags(cfg *config.Config, f cliFlags, roots []string) {
	if f.crate != "" {
		cfg.CrateName = f.crate
	}
	if f.format != "" {
		cfg.Output.Format = strings.ToLower(f.format)
	}
	if f.out != "" {
		cfg.Output.Path = f.out
	}
	if f.snapshotPath != "" {
		cfg.Output.SnapshotPath = f.snapshotPath
	}
	if f.history {
		cfg.History.Enabled = true
	}
	if f.members != "" {
		cfg.Workspace.Members = splitList(f.members)
	}
	if f.disable != "" {
		for _, code := range splitList(f.disable) {
			cfg.Rules.Disabled = append(cfg.Rules.Disabled, strings.ToUpper(code))
		}
	}
	if len(roots) > 0 {
		cfg.Scan.Roots = cfg.Scan.Roots[:0]
		for _, root := range roots {
			if abs, err := filepath.Abs(root); err == nil {
				root = abs
			}
			cfg.Scan.Roots = append(cfg.Scan.Roots, root)
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setupLogging(f cliFlags, stderr io.Writer) func() {
	logLevel := slog.LevelInfo
	if f.verbose {
		logLevel = slog.LevelDebug
	}

	output := stderr
	closer := func() {}
	if f.ui {
		// In UI mode, avoid terminal logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
			fmt.Fprintf(stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else if fi, err := os.Lstat(logPath); err == nil && (fi.Mode()&os.ModeSymlink) != 0 {
			fmt.Fprintf(stderr, "warning: refusing to write logs to symlink path %s\n", logPath)
		} else if file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600); err == nil {
			output = file
			closer = func() { _ = file.Close() }
		} else {
			fmt.Fprintf(stderr, "warning: failed to open log file %s: %v\n", logPath, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{Level: logLevel})))
	return closer
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "klepto", "klepto.log")
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "klepto", "klepto.log")
	}
	return "klepto.log"
}
