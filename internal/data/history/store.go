package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"klepto/internal/shared/observability"
)

const (
	driverName         = "sqlite"
	maxAttempts        = 5
	defaultBusyTimeout = 2 * time.Second
	defaultProjectKey  = "default"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func projectKeyOrDefault(key string) string {
	if key = strings.TrimSpace(key); key == "" {
		return defaultProjectKey
	}
	return key
}

// SaveRun stores run under projectKey, assigning a run id and timestamp when
// missing. The stored run is returned.
func (s *Store) SaveRun(projectKey string, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ProjectKey = projectKeyOrDefault(projectKey)
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	run.Timestamp = run.Timestamp.UTC()
	if len(run.SnapshotJSON) == 0 {
		return Run{}, fmt.Errorf("run %s has no snapshot", run.RunID)
	}

	query := `
INSERT INTO runs (
  run_id, project_key, ts_utc, crate_name, function_count, export_count,
  import_count, finding_count, doc_coverage, snapshot_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	err := s.withRetry("save run", func() error {
		_, err := s.db.Exec(
			query,
			run.RunID,
			run.ProjectKey,
			run.Timestamp.Format(time.RFC3339Nano),
			run.CrateName,
			run.FunctionCount,
			run.ExportCount,
			run.ImportCount,
			run.FindingCount,
			run.DocCoverage,
			string(run.SnapshotJSON),
		)
		return err
	})
	if err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		return Run{}, err
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()
	return run, nil
}

const selectRuns = `
SELECT
  run_id, project_key, ts_utc, crate_name, function_count, export_count,
  import_count, finding_count, doc_coverage, snapshot_json
FROM runs
WHERE project_key = ?`

// LatestRun returns the most recent run for projectKey. ok is false when the
// project has no runs yet.
func (s *Store) LatestRun(projectKey string) (run Run, ok bool, err error) {
	runs, err := s.query("load latest run", selectRuns+" ORDER BY ts_utc DESC, rowid DESC LIMIT 1", projectKeyOrDefault(projectKey))
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

// LoadRuns returns runs at or after since in chronological order. A zero since
// loads everything.
func (s *Store) LoadRuns(projectKey string, since time.Time) ([]Run, error) {
	query := selectRuns
	args := []any{projectKeyOrDefault(projectKey)}
	if !since.IsZero() {
		query += " AND ts_utc >= ?"
		args = append(args, since.UTC().Format(time.RFC3339Nano))
	}
	query += " ORDER BY ts_utc ASC, rowid ASC"
	return s.query("load runs", query, args...)
}

// Prune deletes runs older than before and reports how many were removed.
func (s *Store) Prune(projectKey string, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.Exec(`DELETE FROM runs WHERE project_key = ? AND ts_utc < ?`,
			projectKeyOrDefault(projectKey), before.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

func (s *Store) query(op, query string, args ...any) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry(op, func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			tsRaw    string
			snapJSON string
			run      Run
		)
		if err := rows.Scan(
			&run.RunID,
			&run.ProjectKey,
			&tsRaw,
			&run.CrateName,
			&run.FunctionCount,
			&run.ExportCount,
			&run.ImportCount,
			&run.FindingCount,
			&run.DocCoverage,
			&snapJSON,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, tsRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
		}
		run.Timestamp = ts.UTC()
		run.SnapshotJSON = []byte(snapJSON)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
