package report

import (
	"strings"
	"testing"
	"time"

	"klepto/internal/data/history"
)

func TestRenderTrendTSV(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		Since:         time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC),
		Until:         time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
		Window:        "24h0m0s",
		RunCount:      1,
		Points: []history.TrendPoint{
			{
				Timestamp:      time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC),
				RunID:          "abc123",
				FunctionCount:  10,
				ExportCount:    2,
				ImportCount:    15,
				FindingCount:   3,
				DocCoverage:    62.5,
				DeltaFunctions: -1,
				AvgFindings:    2.5,
				WindowHours:    24,
			},
		},
	}

	out, err := RenderTrendTSV(report)
	if err != nil {
		t.Fatalf("render tsv: %v", err)
	}

	body := string(out)
	if !strings.Contains(body, "Timestamp\tRun\tFunctions") {
		t.Fatalf("missing header in output: %s", body)
	}
	if !strings.Contains(body, "abc123\t10\t2\t15\t3\t62.50\t-1\t0\t0\t0\t0.00\t2.50\t24.00") {
		t.Fatalf("missing row values in output: %s", body)
	}
}

func TestRenderTrendJSON(t *testing.T) {
	report := history.TrendReport{
		SchemaVersion: 1,
		RunCount:      2,
	}

	out, err := RenderTrendJSON(report)
	if err != nil {
		t.Fatalf("render json: %v", err)
	}
	if !strings.Contains(string(out), "\"run_count\": 2") {
		t.Fatalf("missing run_count in json: %s", string(out))
	}
}
