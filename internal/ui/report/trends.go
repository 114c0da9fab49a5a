package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"klepto/internal/data/history"
)

func RenderTrendTSV(report history.TrendReport) ([]byte, error) {
	var buf strings.Builder

	buf.WriteString("Timestamp\tRun\tFunctions\tExports\tImports\tFindings\tDocCoverage\tDeltaFunctions\tDeltaExports\tDeltaImports\tDeltaFindings\tDeltaDocCoverage\tAvgFindings\tWindowHours\n")
	for _, point := range report.Points {
		buf.WriteString(fmt.Sprintf(
			"%s\t%s\t%d\t%d\t%d\t%d\t%.2f\t%d\t%d\t%d\t%d\t%.2f\t%.2f\t%.2f\n",
			point.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			point.RunID,
			point.FunctionCount,
			point.ExportCount,
			point.ImportCount,
			point.FindingCount,
			point.DocCoverage,
			point.DeltaFunctions,
			point.DeltaExports,
			point.DeltaImports,
			point.DeltaFindings,
			point.DeltaDocCoverage,
			point.AvgFindings,
			point.WindowHours,
		))
	}

	return []byte(buf.String()), nil
}

func RenderTrendJSON(report history.TrendReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
