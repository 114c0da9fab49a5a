package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	kerrors "klepto/internal/core/errors"
)

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerrors.WrapPath(err, kerrors.CodeNotFound, "config file not found", path)
		}
		return nil, kerrors.WrapPath(err, kerrors.CodeIO, "read config", path)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, kerrors.AddContext(err, kerrors.CtxPath, path)
	}
	return cfg, nil
}

// Parse decodes, defaults, normalizes and validates TOML config text.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, kerrors.Wrap(err, kerrors.CodeValidationError, "decode config")
	}

	applyDefaults(&cfg)
	normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a normalized config. Call it again after env overrides.
func Validate(cfg *Config) error {
	for _, validate := range []func(*Config) error{
		validateVersion,
		validateScan,
		validateRules,
		validateOutput,
		validateHistory,
		validateWatch,
	} {
		if err := validate(cfg); err != nil {
			return err
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Scan.Include) == 0 {
		cfg.Scan.Include = []string{"**/*.rs"}
	}
	if strings.TrimSpace(cfg.Output.Format) == "" {
		cfg.Output.Format = FormatTable
	}
	if strings.TrimSpace(cfg.Rules.FailOn) == "" {
		cfg.Rules.FailOn = "deny"
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = ".klepto/history.db"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.MaxRunsPerSec == 0 {
		cfg.Watch.MaxRunsPerSec = 1
	}
	if len(cfg.Watch.ExcludeDirs) == 0 {
		cfg.Watch.ExcludeDirs = []string{".git", "target"}
	}
	if strings.TrimSpace(cfg.Observability.ServiceName) == "" {
		cfg.Observability.ServiceName = "klepto"
	}
}

func normalize(cfg *Config) {
	cfg.CrateName = strings.TrimSpace(cfg.CrateName)
	cfg.Scan.Roots = trimAll(cfg.Scan.Roots)
	cfg.Scan.Include = trimAll(cfg.Scan.Include)
	cfg.Scan.Exclude = trimAll(cfg.Scan.Exclude)
	cfg.Workspace.Root = strings.TrimSpace(cfg.Workspace.Root)
	cfg.Workspace.Members = trimAll(cfg.Workspace.Members)
	cfg.Extract.KeepPaths = trimAll(cfg.Extract.KeepPaths)
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
	cfg.Output.Path = strings.TrimSpace(cfg.Output.Path)
	cfg.Output.SnapshotPath = strings.TrimSpace(cfg.Output.SnapshotPath)
	cfg.Rules.FailOn = strings.ToLower(strings.TrimSpace(cfg.Rules.FailOn))
	cfg.History.Path = strings.TrimSpace(cfg.History.Path)
	cfg.History.ProjectKey = strings.TrimSpace(cfg.History.ProjectKey)
	cfg.Observability.OTLPEndpoint = strings.TrimSpace(cfg.Observability.OTLPEndpoint)

	disabled := make([]string, 0, len(cfg.Rules.Disabled))
	for _, code := range cfg.Rules.Disabled {
		if code = strings.ToUpper(strings.TrimSpace(code)); code != "" {
			disabled = append(disabled, code)
		}
	}
	cfg.Rules.Disabled = disabled
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
