package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"klepto/internal/core/config"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/rules"
)

const demoManifest = `[package]
name = "demo"
version = "0.1.0"

[dependencies]
serde = "1"
`

const demoLib = `use serde::Serialize;

/// Returns one.
pub fn documented() -> u32 {
    1
}

pub fn risky(x: Option<u32>) -> u32 {
    x.unwrap()
}

fn helper() {}
`

func writeCrate(t *testing.T, lib string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte(demoManifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte(lib), 0o644))
	return dir
}

func newTestApp(t *testing.T, dir string, mutate func(*config.Config)) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, config.Validate(cfg))
	paths, err := config.ResolvePaths(cfg, dir)
	require.NoError(t, err)

	var out bytes.Buffer
	app, err := NewApp(cfg, paths, &out)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, &out
}

func codes(findings []rules.Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}

func TestApp_RunOnceAndReport(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, out := newTestApp(t, dir, nil)

	res, err := app.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "demo", res.Analysis.CrateName)
	assert.Len(t, res.Analysis.Files, 1)
	assert.Contains(t, codes(res.Findings), "KLEP001")
	assert.Equal(t, 2, res.Coverage.PublicTotal)
	assert.Equal(t, 1, res.Coverage.Documented)
	assert.InDelta(t, 50.0, res.Coverage.Percent, 0.001)
	assert.Nil(t, res.Diff, "no baseline and no history means no diff")
	for _, f := range res.Findings {
		assert.Equal(t, rules.Warn, f.Severity)
	}

	require.NoError(t, app.Report(res))
	assert.True(t, strings.HasPrefix(out.String(), "SEV  CODE"))
	assert.Contains(t, out.String(), "KLEP001")
}

func TestApp_DisabledRulesAreSkipped(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, _ := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.Rules.Disabled = []string{"KLEP001", "KLEP002"}
	})

	res, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, codes(res.Findings), "KLEP001")
	assert.NotContains(t, codes(res.Findings), "KLEP002")
}

func TestApp_ReportToFile(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, out := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.Output.Format = config.FormatJSON
		cfg.Output.Path = "reports/klepto.json"
	})

	res, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	require.NoError(t, app.Report(res))
	assert.Empty(t, out.String())

	data, err := os.ReadFile(filepath.Join(dir, "reports", "klepto.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "demo", decoded["crate"])
	assert.Contains(t, decoded, "findings")
}

func TestApp_HistoryDiffBetweenRuns(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, _ := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.History.Enabled = true
		cfg.Output.SnapshotPath = "api.json"
	})

	first, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, first.Diff)
	_, err = os.Stat(filepath.Join(dir, "api.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, ".klepto", "history.db"))
	require.NoError(t, err)

	lib := demoLib + "\n/// Added later.\npub fn added() {}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "lib.rs"), []byte(lib), 0o644))

	second, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second.Diff)
	require.Len(t, second.Diff.AddedFunctions, 1)
	assert.True(t, strings.HasSuffix(second.Diff.AddedFunctions[0].FQName, "::added"))
	assert.Empty(t, second.Diff.RemovedFunctions)
}

func TestApp_LoadBaselinePinsDiff(t *testing.T) {
	dir := writeCrate(t, demoLib)
	first, _ := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.Output.SnapshotPath = "api.json"
	})
	_, err := first.RunOnce(context.Background())
	require.NoError(t, err)

	app, _ := newTestApp(t, dir, nil)
	require.NoError(t, app.LoadBaseline(filepath.Join(dir, "api.json")))
	res, err := app.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Diff)
	assert.True(t, res.Diff.Empty())

	err = app.LoadBaseline(filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestApp_UpdatesMarkdownSection(t *testing.T) {
	dir := writeCrate(t, demoLib)
	readme := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(readme, []byte("# Demo\n\n<!-- klepto:status:start -->\nold\n<!-- klepto:status:end -->\n"), 0o644))

	app, _ := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.Output.UpdateMarkdown = []config.MarkdownTarget{{File: "README.md", Marker: "status"}}
	})
	_, err := app.RunOnce(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(readme)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "**demo**:")
	assert.Contains(t, content, "doc coverage 50.0%")
	assert.NotContains(t, content, "\nold\n")
	assert.True(t, strings.HasPrefix(content, "# Demo"))
}

func TestApp_PrintTrend(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, out := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.History.Enabled = true
		cfg.Output.Format = config.FormatJSON
	})

	for i := 0; i < 2; i++ {
		_, err := app.RunOnce(context.Background())
		require.NoError(t, err)
	}
	require.NoError(t, app.PrintTrend(time.Hour))

	var trend struct {
		ProjectKey string `json:"project_key"`
		RunCount   int    `json:"run_count"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &trend))
	assert.Equal(t, "demo", trend.ProjectKey)
	assert.Equal(t, 2, trend.RunCount)
}

func TestApp_PrintTrendRequiresHistory(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, _ := newTestApp(t, dir, nil)
	require.Error(t, app.PrintTrend(time.Hour))
}

func TestApp_HandleChangesReportsAgain(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, out := newTestApp(t, dir, nil)

	app.HandleChanges(context.Background(), []string{filepath.Join(dir, "src", "lib.rs")})
	assert.Contains(t, out.String(), "KLEP001")
}

func TestApp_WatchRootsSkipsMissing(t *testing.T) {
	dir := writeCrate(t, demoLib)
	app, _ := newTestApp(t, dir, func(cfg *config.Config) {
		cfg.Scan.Roots = []string{"src", "does-not-exist"}
	})

	roots := app.watchRoots()
	assert.Equal(t, []string{filepath.Join(dir, "src")}, roots)
}

func TestExitCode(t *testing.T) {
	loc := facts.At("src/lib.rs", 1, 1)
	warn := []rules.Finding{{Severity: rules.Warn, Code: "KLEP001", Location: loc}}
	deny := []rules.Finding{{Severity: rules.Deny, Code: "KLEP004", Location: loc}}

	tests := []struct {
		name     string
		findings []rules.Finding
		failOn   string
		want     int
	}{
		{"no findings", nil, "deny", exitOK},
		{"warn below deny", warn, "deny", exitOK},
		{"deny at deny", deny, "deny", exitFindings},
		{"warn at warn", warn, "warn", exitFindings},
		{"warn at info", warn, "info", exitFindings},
		{"never", deny, "never", exitOK},
		{"unknown falls back to deny", deny, "bogus", exitFindings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.findings, tt.failOn))
		})
	}
}
