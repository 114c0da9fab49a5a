package config

import (
	"time"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatSARIF    = "sarif"

	DefaultFileName = "klepto.toml"
)

type Config struct {
	Version       int           `toml:"version"`
	CrateName     string        `toml:"crate_name"`
	Scan          Scan          `toml:"scan"`
	Workspace     Workspace     `toml:"workspace"`
	Extract       Extract       `toml:"extract"`
	Rules         Rules         `toml:"rules"`
	Output        Output        `toml:"output"`
	History       History       `toml:"history"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Scan struct {
	Roots             []string `toml:"roots"`
	Include           []string `toml:"include"`
	Exclude           []string `toml:"exclude"`
	ExcludeGenerated  bool     `toml:"exclude_generated"`
	MaxFileSize       int64    `toml:"max_file_size"`
	OnlyNewest        int      `toml:"only_newest"`
	IgnoreParseErrors bool     `toml:"ignore_parse_errors"`
	FollowLinks       bool     `toml:"follow_links"`
	Workers           int      `toml:"workers"`
	IncludeTests      bool     `toml:"include_tests"`
	IncludeExamples   bool     `toml:"include_examples"`
	IncludeBenches    bool     `toml:"include_benches"`
}

type Workspace struct {
	Root    string   `toml:"root"`
	Members []string `toml:"members"`
}

type Extract struct {
	// KeepPaths extends the single-segment path allow-list.
	KeepPaths []string `toml:"keep_paths"`
}

type Rules struct {
	Disabled []string `toml:"disabled"`
	// FailOn is the lowest severity that makes the CLI exit non-zero.
	FailOn string `toml:"fail_on"`
}

type Output struct {
	Format       string `toml:"format"`
	Path         string `toml:"path"`
	SnapshotPath string `toml:"snapshot_path"`
	// Collapsible wraps long Markdown tables in <details>.
	Collapsible    bool             `toml:"collapsible"`
	UpdateMarkdown []MarkdownTarget `toml:"update_markdown"`
}

// MarkdownTarget is a file whose klepto:<marker> block is rewritten with a
// findings summary after every run.
type MarkdownTarget struct {
	File   string `toml:"file"`
	Marker string `toml:"marker"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	ProjectKey  string        `toml:"project_key"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	Retention   time.Duration `toml:"retention"`
}

type Watch struct {
	Debounce      time.Duration `toml:"debounce"`
	MaxRunsPerSec float64       `toml:"max_runs_per_sec"`
	ExcludeDirs   []string      `toml:"exclude_dirs"`
	ExcludeFiles  []string      `toml:"exclude_files"`
}

type Observability struct {
	OTLPEndpoint string `toml:"otlp_endpoint"`
	ServiceName  string `toml:"service_name"`
	MetricsAddr  string `toml:"metrics_addr"`
}

// DefaultConfig is used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
