package formats

import (
	"encoding/json"

	"klepto/internal/engine/rules"
	"klepto/internal/engine/snapshot"
)

type jsonReport struct {
	Crate       string          `json:"crate,omitempty"`
	DocCoverage *float64        `json:"doc_coverage,omitempty"`
	Findings    []rules.Finding `json:"findings"`
	Diff        *snapshot.Diff  `json:"diff,omitempty"`
}

// JSON renders findings as a pretty-printed array.
func JSON(findings []rules.Finding) ([]byte, error) {
	if findings == nil {
		findings = []rules.Finding{}
	}
	return json.MarshalIndent(findings, "", "  ")
}

// JSONReport renders the full report object: crate, coverage, findings and
// the optional snapshot diff.
func JSONReport(data ReportData) ([]byte, error) {
	out := jsonReport{
		Crate:    data.CrateName,
		Findings: data.Findings,
		Diff:     data.Diff,
	}
	if out.Findings == nil {
		out.Findings = []rules.Finding{}
	}
	if data.HasCoverage {
		cov := data.DocCoverage
		out.DocCoverage = &cov
	}
	return json.MarshalIndent(out, "", "  ")
}
