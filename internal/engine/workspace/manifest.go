// Package workspace resolves Cargo manifests into the member crates to scan
// and the crate names the import classifier needs.
package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	kerrors "klepto/internal/core/errors"
	"klepto/internal/engine/classify"
)

const ManifestName = "Cargo.toml"

type packageSection struct {
	Name string `toml:"name"`
}

type workspaceSection struct {
	Members      []string       `toml:"members"`
	Exclude      []string       `toml:"exclude"`
	Dependencies map[string]any `toml:"dependencies"`
}

type targetSection struct {
	Dependencies      map[string]any `toml:"dependencies"`
	DevDependencies   map[string]any `toml:"dev-dependencies"`
	BuildDependencies map[string]any `toml:"build-dependencies"`
}

// Manifest is the subset of Cargo.toml klepto reads.
type Manifest struct {
	Package           *packageSection          `toml:"package"`
	Workspace         *workspaceSection        `toml:"workspace"`
	Dependencies      map[string]any           `toml:"dependencies"`
	DevDependencies   map[string]any           `toml:"dev-dependencies"`
	BuildDependencies map[string]any           `toml:"build-dependencies"`
	Target            map[string]targetSection `toml:"target"`
}

// ReadManifest decodes one Cargo.toml.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, kerrors.WrapPath(err, kerrors.CodeManifest, "read manifest", path)
	}
	var m Manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, kerrors.WrapPath(err, kerrors.CodeManifest, "decode manifest", path)
	}
	return &m, nil
}

// PackageName is empty for virtual workspace manifests.
func (m *Manifest) PackageName() string {
	if m.Package == nil {
		return ""
	}
	return strings.TrimSpace(m.Package.Name)
}

// DependencyNames lists every dependency key the crate can reference in
// source, across normal, dev, build and target-specific tables.
func (m *Manifest) DependencyNames() []string {
	seen := map[string]struct{}{}
	add := func(table map[string]any) {
		for name := range table {
			seen[name] = struct{}{}
		}
	}
	add(m.Dependencies)
	add(m.DevDependencies)
	add(m.BuildDependencies)
	for _, t := range m.Target {
		add(t.Dependencies)
		add(t.DevDependencies)
		add(t.BuildDependencies)
	}
	if m.Workspace != nil {
		add(m.Workspace.Dependencies)
	}
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type Member struct {
	Name string
	Dir  string
}

// Workspace is a resolved Cargo workspace, or a single package treated as a
// workspace of one.
type Workspace struct {
	Root    string
	Members []Member
	// Dependencies holds the raw dependency keys of every member.
	Dependencies []string
}

// Load resolves the manifest at root. Any unreadable member manifest fails
// the whole resolution.
func Load(root string) (*Workspace, error) {
	rootManifest := filepath.Join(root, ManifestName)
	m, err := ReadManifest(rootManifest)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{Root: root}
	deps := map[string]struct{}{}
	for _, d := range m.DependencyNames() {
		deps[d] = struct{}{}
	}

	if name := m.PackageName(); name != "" {
		ws.Members = append(ws.Members, Member{Name: name, Dir: root})
	}

	if m.Workspace != nil {
		dirs, err := expandMembers(root, m.Workspace.Members, m.Workspace.Exclude)
		if err != nil {
			return nil, err
		}
		for _, dir := range dirs {
			if filepath.Clean(dir) == filepath.Clean(root) {
				continue
			}
			mm, err := ReadManifest(filepath.Join(dir, ManifestName))
			if err != nil {
				return nil, kerrors.AddContext(err, kerrors.CtxOperation, "workspace member")
			}
			name := mm.PackageName()
			if name == "" {
				return nil, kerrors.WrapPath(nil, kerrors.CodeManifest, "member manifest has no package name", dir)
			}
			ws.Members = append(ws.Members, Member{Name: name, Dir: dir})
			for _, d := range mm.DependencyNames() {
				deps[d] = struct{}{}
			}
		}
	}

	if len(ws.Members) == 0 {
		return nil, kerrors.WrapPath(nil, kerrors.CodeManifest, "manifest declares no package or members", rootManifest)
	}
	ws.Dependencies = sortedKeys(deps)
	return ws, nil
}

// expandMembers resolves member globs to directories that carry a manifest.
func expandMembers(root string, patterns, exclude []string) ([]string, error) {
	skip := map[string]struct{}{}
	for _, e := range exclude {
		skip[filepath.Clean(filepath.Join(root, e))] = struct{}{}
	}

	seen := map[string]struct{}{}
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, (&kerrors.DomainError{
				Code:    kerrors.CodeManifest,
				Message: "invalid workspace member pattern",
				Err:     err,
			}).WithContext(kerrors.CtxPattern, pattern)
		}
		for _, dir := range matches {
			dir = filepath.Clean(dir)
			if _, ok := skip[dir]; ok {
				continue
			}
			if _, ok := seen[dir]; ok {
				continue
			}
			info, err := os.Stat(filepath.Join(dir, ManifestName))
			if err != nil || info.IsDir() {
				continue
			}
			seen[dir] = struct{}{}
			out = append(out, dir)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MemberNames returns the raw package names of all members.
func (w *Workspace) MemberNames() []string {
	out := make([]string, 0, len(w.Members))
	for _, m := range w.Members {
		out = append(out, m.Name)
	}
	return out
}

// NameSets builds the classifier input for this workspace.
func (w *Workspace) NameSets() classify.NameSets {
	return classify.NewNameSets(w.MemberNames(), w.Dependencies)
}

// Select keeps only the named members; an empty filter keeps all. Names
// match with or without hyphen normalization.
func (w *Workspace) Select(names []string) []Member {
	if len(names) == 0 {
		return append([]Member(nil), w.Members...)
	}
	want := map[string]struct{}{}
	for _, n := range names {
		want[classify.Normalize(strings.TrimSpace(n))] = struct{}{}
	}
	var out []Member
	for _, m := range w.Members {
		if _, ok := want[classify.Normalize(m.Name)]; ok {
			out = append(out, m)
		}
	}
	return out
}

type SourceDirs struct {
	Tests    bool
	Examples bool
	Benches  bool
}

// Roots lists the directories to scan for the given members: src always,
// plus tests, examples and benches on request.
func Roots(members []Member, dirs SourceDirs) []string {
	var out []string
	for _, m := range members {
		out = append(out, filepath.Join(m.Dir, "src"))
		if dirs.Tests {
			out = append(out, filepath.Join(m.Dir, "tests"))
		}
		if dirs.Examples {
			out = append(out, filepath.Join(m.Dir, "examples"))
		}
		if dirs.Benches {
			out = append(out, filepath.Join(m.Dir, "benches"))
		}
	}
	return out
}
