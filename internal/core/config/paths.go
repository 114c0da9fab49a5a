package config

import (
	"os"
	"path/filepath"
	"strings"

	kerrors "klepto/internal/core/errors"
)

type ResolvedPaths struct {
	ProjectRoot   string
	Roots         []string
	WorkspaceRoot string
	HistoryPath   string
	OutputPath    string
	SnapshotPath  string
	MarkdownFiles []string
}

// ResolvePaths anchors every relative path in cfg at the project root. The
// project root is the nearest ancestor of cwd carrying a project marker.
func ResolvePaths(cfg *Config, cwd string) (ResolvedPaths, error) {
	if strings.TrimSpace(cwd) == "" {
		return ResolvedPaths{}, kerrors.New(kerrors.CodeValidationError, "cwd must not be empty")
	}

	projectRoot, err := DetectProjectRoot([]string{cwd})
	if err != nil {
		return ResolvedPaths{}, err
	}

	resolved := ResolvedPaths{ProjectRoot: projectRoot}
	for _, root := range cfg.Scan.Roots {
		resolved.Roots = append(resolved.Roots, ResolveRelative(projectRoot, root))
	}
	if cfg.Workspace.Root != "" {
		resolved.WorkspaceRoot = ResolveRelative(projectRoot, cfg.Workspace.Root)
	}
	if len(resolved.Roots) == 0 && resolved.WorkspaceRoot == "" {
		if _, err := os.Stat(filepath.Join(projectRoot, "Cargo.toml")); err == nil {
			resolved.WorkspaceRoot = projectRoot
		} else {
			resolved.Roots = []string{filepath.Join(projectRoot, "src")}
		}
	}
	if cfg.History.Path != "" {
		resolved.HistoryPath = ResolveRelative(projectRoot, cfg.History.Path)
	}
	if cfg.Output.Path != "" {
		resolved.OutputPath = ResolveRelative(projectRoot, cfg.Output.Path)
	}
	if cfg.Output.SnapshotPath != "" {
		resolved.SnapshotPath = ResolveRelative(projectRoot, cfg.Output.SnapshotPath)
	}
	for _, target := range cfg.Output.UpdateMarkdown {
		resolved.MarkdownFiles = append(resolved.MarkdownFiles, ResolveRelative(projectRoot, target.File))
	}
	return resolved, nil
}

func ResolveRelative(base, value string) string {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return filepath.Clean(base)
	}
	if filepath.IsAbs(raw) {
		return filepath.Clean(raw)
	}
	return filepath.Clean(filepath.Join(base, raw))
}

func DetectProjectRoot(candidates []string) (string, error) {
	markers := []string{
		DefaultFileName,
		"Cargo.toml",
		".git",
	}

	for _, candidate := range candidates {
		if strings.TrimSpace(candidate) == "" {
			continue
		}

		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		root := abs
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			root = filepath.Dir(abs)
		}

		for {
			for _, marker := range markers {
				if _, err := os.Stat(filepath.Join(root, marker)); err == nil {
					return filepath.Clean(root), nil
				}
			}
			parent := filepath.Dir(root)
			if parent == root {
				break
			}
			root = parent
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", kerrors.Wrap(err, kerrors.CodeIO, "determine working directory")
	}
	return filepath.Clean(cwd), nil
}
