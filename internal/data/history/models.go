package history

import (
	"time"

	"klepto/internal/engine/snapshot"
)

const SchemaVersion = 1

// Run is one recorded analysis of a crate.
type Run struct {
	RunID         string    `json:"run_id"`
	ProjectKey    string    `json:"project_key"`
	Timestamp     time.Time `json:"timestamp"`
	CrateName     string    `json:"crate_name"`
	FunctionCount int       `json:"function_count"`
	ExportCount   int       `json:"export_count"`
	ImportCount   int       `json:"import_count"`
	FindingCount  int       `json:"finding_count"`
	DocCoverage   float64   `json:"doc_coverage"`
	SnapshotJSON  []byte    `json:"-"`
}

// NewRun derives the counters from snap and embeds its JSON encoding.
func NewRun(snap snapshot.Snapshot, findingCount int, docCoverage float64) (Run, error) {
	data, err := snap.Encode()
	if err != nil {
		return Run{}, err
	}
	return Run{
		CrateName:     snap.CrateName,
		FunctionCount: len(snap.Functions),
		ExportCount:   len(snap.Exports),
		ImportCount:   len(snap.Imports),
		FindingCount:  findingCount,
		DocCoverage:   docCoverage,
		SnapshotJSON:  data,
	}, nil
}

// Snapshot decodes the embedded API snapshot.
func (r Run) Snapshot() (snapshot.Snapshot, error) {
	return snapshot.Decode(r.SnapshotJSON)
}

type TrendPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	RunID            string    `json:"run_id"`
	FunctionCount    int       `json:"function_count"`
	ExportCount      int       `json:"export_count"`
	ImportCount      int       `json:"import_count"`
	FindingCount     int       `json:"finding_count"`
	DocCoverage      float64   `json:"doc_coverage"`
	DeltaFunctions   int       `json:"delta_functions"`
	DeltaExports     int       `json:"delta_exports"`
	DeltaImports     int       `json:"delta_imports"`
	DeltaFindings    int       `json:"delta_findings"`
	DeltaDocCoverage float64   `json:"delta_doc_coverage"`
	AvgFindings      float64   `json:"avg_findings"`
	WindowHours      float64   `json:"window_hours"`
}

type TrendReport struct {
	SchemaVersion int          `json:"schema_version"`
	ProjectKey    string       `json:"project_key"`
	Since         time.Time    `json:"since"`
	Until         time.Time    `json:"until"`
	Window        string       `json:"window"`
	RunCount      int          `json:"run_count"`
	Points        []TrendPoint `json:"points"`
}
