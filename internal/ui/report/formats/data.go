package formats

import (
	"path/filepath"
	"strings"
	"time"

	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
)

// ReportData is everything a full report can show. Only Findings is
// required.
type ReportData struct {
	CrateName   string
	ProjectRoot string
	Version     string
	GeneratedAt time.Time
	Findings    []rules.Finding
	HasCoverage bool
	DocCoverage float64
	Diff        *snapshot.Diff
}

func relPath(root, path string) string {
	root = strings.TrimSpace(root)
	path = strings.TrimSpace(path)
	if root == "" || path == "" || !filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
