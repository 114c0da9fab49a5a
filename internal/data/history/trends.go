package history

import (
	"fmt"
	"math"
	"time"
)

// BuildTrendReport computes per-run deltas and a trailing average of finding
// counts over window. runs must be in chronological order.
func BuildTrendReport(projectKey string, runs []Run, window time.Duration) (TrendReport, error) {
	if len(runs) == 0 {
		return TrendReport{}, fmt.Errorf("no runs available for project %q", projectKey)
	}

	points := make([]TrendPoint, 0, len(runs))
	for i, current := range runs {
		point := TrendPoint{
			Timestamp:     current.Timestamp,
			RunID:         current.RunID,
			FunctionCount: current.FunctionCount,
			ExportCount:   current.ExportCount,
			ImportCount:   current.ImportCount,
			FindingCount:  current.FindingCount,
			DocCoverage:   current.DocCoverage,
		}
		if i > 0 {
			prev := runs[i-1]
			point.DeltaFunctions = current.FunctionCount - prev.FunctionCount
			point.DeltaExports = current.ExportCount - prev.ExportCount
			point.DeltaImports = current.ImportCount - prev.ImportCount
			point.DeltaFindings = current.FindingCount - prev.FindingCount
			point.DeltaDocCoverage = round2(current.DocCoverage - prev.DocCoverage)
		}
		point.AvgFindings = round2(movingAverage(runs, i, window))
		point.WindowHours = round2(window.Hours())
		points = append(points, point)
	}

	return TrendReport{
		SchemaVersion: SchemaVersion,
		ProjectKey:    projectKey,
		Since:         runs[0].Timestamp,
		Until:         runs[len(runs)-1].Timestamp,
		Window:        window.String(),
		RunCount:      len(points),
		Points:        points,
	}, nil
}

func movingAverage(runs []Run, index int, window time.Duration) float64 {
	if window <= 0 {
		return float64(runs[index].FindingCount)
	}

	cutoff := runs[index].Timestamp.Add(-window)
	total, count := 0, 0
	for i := index; i >= 0; i-- {
		if runs[i].Timestamp.Before(cutoff) {
			break
		}
		total += runs[i].FindingCount
		count++
	}
	if count == 0 {
		return 0
	}
	return float64(total) / float64(count)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
