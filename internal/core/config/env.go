package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: KLEPTO_[SECTION]_[KEY] (e.g., KLEPTO_OUTPUT_FORMAT).
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.CrateName, "KLEPTO_CRATE_NAME")

	// Scan
	setEnvStrings(&cfg.Scan.Roots, "KLEPTO_SCAN_ROOTS")
	setEnvStrings(&cfg.Scan.Exclude, "KLEPTO_SCAN_EXCLUDE")
	setEnvInt(&cfg.Scan.OnlyNewest, "KLEPTO_SCAN_ONLY_NEWEST")
	setEnvInt(&cfg.Scan.Workers, "KLEPTO_SCAN_WORKERS")
	setEnvBool(&cfg.Scan.IgnoreParseErrors, "KLEPTO_SCAN_IGNORE_PARSE_ERRORS")
	setEnvBool(&cfg.Scan.FollowLinks, "KLEPTO_SCAN_FOLLOW_LINKS")

	// Workspace
	setEnvString(&cfg.Workspace.Root, "KLEPTO_WORKSPACE_ROOT")
	setEnvStrings(&cfg.Workspace.Members, "KLEPTO_WORKSPACE_MEMBERS")

	// Rules
	setEnvStrings(&cfg.Rules.Disabled, "KLEPTO_RULES_DISABLED")
	setEnvString(&cfg.Rules.FailOn, "KLEPTO_RULES_FAIL_ON")

	// Output
	setEnvString(&cfg.Output.Format, "KLEPTO_OUTPUT_FORMAT")
	setEnvString(&cfg.Output.Path, "KLEPTO_OUTPUT_PATH")
	setEnvString(&cfg.Output.SnapshotPath, "KLEPTO_OUTPUT_SNAPSHOT_PATH")

	// History
	setEnvBool(&cfg.History.Enabled, "KLEPTO_HISTORY_ENABLED")
	setEnvString(&cfg.History.Path, "KLEPTO_HISTORY_PATH")
	setEnvString(&cfg.History.ProjectKey, "KLEPTO_HISTORY_PROJECT_KEY")
	setEnvDuration(&cfg.History.BusyTimeout, "KLEPTO_HISTORY_BUSY_TIMEOUT")

	// Watch
	setEnvDuration(&cfg.Watch.Debounce, "KLEPTO_WATCH_DEBOUNCE")
	setEnvFloat64(&cfg.Watch.MaxRunsPerSec, "KLEPTO_WATCH_MAX_RUNS_PER_SEC")

	// Observability
	setEnvString(&cfg.Observability.OTLPEndpoint, "KLEPTO_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvString(&cfg.Observability.ServiceName, "KLEPTO_OBSERVABILITY_SERVICE_NAME")
	setEnvString(&cfg.Observability.MetricsAddr, "KLEPTO_OBSERVABILITY_METRICS_ADDR")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

// setEnvStrings splits a comma separated value.
func setEnvStrings(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = strings.Split(val, ",")
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
