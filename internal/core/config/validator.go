package config

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	kerrors "klepto/internal/core/errors"
)

func invalid(format string, args ...any) error {
	return kerrors.New(kerrors.CodeValidationError, fmt.Sprintf(format, args...))
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return invalid("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateScan(cfg *Config) error {
	if cfg.Scan.MaxFileSize < 0 {
		return invalid("scan.max_file_size must be >= 0, got %d", cfg.Scan.MaxFileSize)
	}
	if cfg.Scan.OnlyNewest < 0 {
		return invalid("scan.only_newest must be >= 0, got %d", cfg.Scan.OnlyNewest)
	}
	if cfg.Scan.Workers < 0 {
		return invalid("scan.workers must be >= 0, got %d", cfg.Scan.Workers)
	}
	for _, field := range []struct {
		name     string
		patterns []string
	}{
		{"scan.include", cfg.Scan.Include},
		{"scan.exclude", cfg.Scan.Exclude},
		{"watch.exclude_dirs", cfg.Watch.ExcludeDirs},
		{"watch.exclude_files", cfg.Watch.ExcludeFiles},
	} {
		for _, p := range field.patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				return (&kerrors.DomainError{
					Code:    kerrors.CodeValidationError,
					Message: field.name + " contains an invalid glob",
					Err:     err,
				}).WithContext(kerrors.CtxPattern, p)
			}
		}
	}
	return nil
}

func validateRules(cfg *Config) error {
	switch cfg.Rules.FailOn {
	case "info", "warn", "deny", "never":
		return nil
	}
	return invalid("rules.fail_on must be one of: info, warn, deny, never")
}

func validateOutput(cfg *Config) error {
	switch cfg.Output.Format {
	case FormatTable, FormatJSON, FormatMarkdown, FormatSARIF:
	default:
		return invalid("output.format must be one of: %s", strings.Join(Formats(), ", "))
	}
	for i, target := range cfg.Output.UpdateMarkdown {
		if strings.TrimSpace(target.File) == "" || strings.TrimSpace(target.Marker) == "" {
			return invalid("output.update_markdown[%d] requires file and marker", i)
		}
	}
	return nil
}

// Formats lists the supported report formats.
func Formats() []string {
	return []string{FormatTable, FormatJSON, FormatMarkdown, FormatSARIF}
}

func validateHistory(cfg *Config) error {
	if cfg.History.Enabled && cfg.History.Path == "" {
		return invalid("history.path must not be empty when history is enabled")
	}
	if cfg.History.Retention < 0 {
		return invalid("history.retention must be >= 0")
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return invalid("watch.debounce must be >= 0")
	}
	if cfg.Watch.MaxRunsPerSec < 0 {
		return invalid("watch.max_runs_per_sec must be >= 0")
	}
	return nil
}
