package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/facts"
	"klepto/internal/engine/workspace"
)

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

func candidatePaths(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, filepath.Base(c.Path))
	}
	return out
}

func TestNew_RejectsBadGlobBeforeScanning(t *testing.T) {
	_, err := New(Options{Roots: []string{"does-not-matter"}, Exclude: []string{"src/[unclosed"}})
	require.Error(t, err)
	assert.True(t, kerrors.IsCode(err, kerrors.CodeValidationError))
	assert.Contains(t, err.Error(), "src/[unclosed")

	_, err = New(Options{})
	assert.True(t, kerrors.IsCode(err, kerrors.CodeValidationError))
}

func TestDiscover_FiltersAndOrdersNewestFirst(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, write(t, filepath.Join(root, "src", "old.rs"), "fn a() {}\n"), base)
	touch(t, write(t, filepath.Join(root, "src", "new.rs"), "fn b() {}\n"), base.Add(2*time.Hour))
	touch(t, write(t, filepath.Join(root, "src", "mid.rs"), "fn c() {}\n"), base.Add(time.Hour))
	write(t, filepath.Join(root, "src", "notes.md"), "# notes\n")
	write(t, filepath.Join(root, "target", "debug", "build.rs"), "fn d() {}\n")
	write(t, filepath.Join(root, "src", "proto_pb.rs"), "fn e() {}\n")
	write(t, filepath.Join(root, "src", "skip_me.rs"), "fn f() {}\n")

	s, err := New(Options{
		Roots:            []string{root},
		Exclude:          []string{"**/skip_*.rs"},
		ExcludeGenerated: true,
	})
	require.NoError(t, err)

	got, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new.rs", "mid.rs", "old.rs"}, candidatePaths(got))

	s, err = New(Options{Roots: []string{root}, ExcludeGenerated: true, Exclude: []string{"**/skip_*.rs"}, OnlyNewest: 2})
	require.NoError(t, err)
	got, err = s.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"new.rs", "mid.rs"}, candidatePaths(got))
}

func TestDiscover_FileRootsAndDedup(t *testing.T) {
	root := t.TempDir()
	lib := write(t, filepath.Join(root, "lib.rs"), "fn a() {}\n")

	s, err := New(Options{Roots: []string{root, lib, filepath.Join(root, "missing")}})
	require.NoError(t, err)
	got, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDiscover_FollowLinks(t *testing.T) {
	root := t.TempDir()
	shared := t.TempDir()
	write(t, filepath.Join(shared, "shared.rs"), "fn s() {}\n")
	write(t, filepath.Join(root, "src", "lib.rs"), "fn l() {}\n")
	if err := os.Symlink(shared, filepath.Join(root, "src", "linked")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	s, err := New(Options{Roots: []string{root}})
	require.NoError(t, err)
	got, err := s.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"lib.rs"}, candidatePaths(got))

	s, err = New(Options{Roots: []string{root}, FollowLinks: true})
	require.NoError(t, err)
	got, err = s.Discover(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"lib.rs", "shared.rs"}, candidatePaths(got))
}

func TestParse_ErrorPolicy(t *testing.T) {
	root := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, write(t, filepath.Join(root, "good.rs"), "pub fn ok() {}\n"), base.Add(time.Hour))
	touch(t, write(t, filepath.Join(root, "bad.rs"), "pub fn broken( {\n"), base)

	strict, err := New(Options{Roots: []string{root}})
	require.NoError(t, err)
	_, err = strict.Build(context.Background())
	require.Error(t, err)
	assert.True(t, kerrors.IsCode(err, kerrors.CodeParse))
	assert.Contains(t, err.Error(), "bad.rs")
	assert.Contains(t, err.Error(), "ignore_parse_errors")

	lenient, err := New(Options{Roots: []string{root}, IgnoreParseErrors: true, CrateName: "demo"})
	require.NoError(t, err)
	a, err := lenient.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, a.Facts.Functions, 1)
	assert.Equal(t, "demo::ok", a.Facts.Functions[0].FQName)
}

func TestParse_SkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "small.rs"), "fn a() {}\n")
	write(t, filepath.Join(root, "big.rs"), "fn b() { let _x = \"0123456789012345678901234567890123456789\"; }\n")

	s, err := New(Options{Roots: []string{root}, MaxFileSize: 20, Workers: 2})
	require.NoError(t, err)
	candidates, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	units, err := s.Parse(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "small.rs", filepath.Base(units[0].Path))
	units[0].Close()
}

func TestParse_KeepsCandidateOrder(t *testing.T) {
	root := t.TempDir()
	var candidates []Candidate
	for _, name := range []string{"e.rs", "d.rs", "c.rs", "b.rs", "a.rs"} {
		candidates = append(candidates, Candidate{Path: write(t, filepath.Join(root, name), "fn x() {}\n")})
	}
	s, err := New(Options{Roots: []string{root}, Workers: 4})
	require.NoError(t, err)

	units, err := s.Parse(context.Background(), candidates)
	require.NoError(t, err)
	require.Len(t, units, 5)
	for i, u := range units {
		assert.Equal(t, candidates[i].Path, u.Path)
		u.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Parse(ctx, candidates)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_Workspace(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "Cargo.toml"), "[workspace]\nmembers = [\"crates/*\"]\n")
	write(t, filepath.Join(root, "crates/app-core/Cargo.toml"), "[package]\nname = \"app-core\"\n[dependencies]\nserde = \"1\"\n")
	write(t, filepath.Join(root, "crates/app-core/src/lib.rs"), `
use serde::Serialize;
use app_cli::Args;

/// Documented.
pub fn start() {}
`)
	write(t, filepath.Join(root, "crates/app-core/tests/smoke.rs"), "fn smoke() {}\n")
	write(t, filepath.Join(root, "crates/app-cli/Cargo.toml"), "[package]\nname = \"app-cli\"\n")
	write(t, filepath.Join(root, "crates/app-cli/src/main.rs"), "fn main() {}\n")

	s, err := New(Options{
		WorkspaceRoot: root,
		Members:       []string{"app-core"},
		SourceDirs:    workspace.SourceDirs{Tests: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "crate", s.CrateName())
	assert.Len(t, s.Roots(), 2)

	a, err := s.Build(context.Background())
	require.NoError(t, err)

	var fqs []string
	for _, f := range a.Facts.Functions {
		fqs = append(fqs, f.FQName)
	}
	assert.ElementsMatch(t, []string{"crate::start", "crate::smoke"}, fqs)

	origins := map[string]facts.Origin{}
	for _, imp := range a.Facts.Imports {
		origins[imp.Root] = *imp.Origin
	}
	assert.Equal(t, facts.OriginDependency, origins["serde"])
	assert.Equal(t, facts.OriginWorkspaceMember, origins["app_cli"])

	_, err = New(Options{WorkspaceRoot: root, Members: []string{"nope"}})
	assert.True(t, kerrors.IsCode(err, kerrors.CodeNotFound))
}

func TestBuild_SinglePackageNamesCrate(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "Cargo.toml"), "[package]\nname = \"my-lib\"\n")
	write(t, filepath.Join(root, "src/lib.rs"), "pub fn api() {}\n")

	s, err := New(Options{WorkspaceRoot: root})
	require.NoError(t, err)
	assert.Equal(t, "my_lib", s.CrateName())

	a, err := s.Build(context.Background())
	require.NoError(t, err)
	require.Len(t, a.Facts.Functions, 1)
	assert.Equal(t, "my_lib::api", a.Facts.Functions[0].FQName)

	_, err = New(Options{WorkspaceRoot: t.TempDir()})
	assert.True(t, kerrors.IsCode(err, kerrors.CodeManifest))
}
