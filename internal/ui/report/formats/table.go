package formats

import (
	"fmt"
	"strings"

	"klepto/internal/engine/rules"
)

const (
	tableHeader = "SEV  CODE    LOCATION                         MESSAGE\n"
	tableRule   = "---- ------- -------------------------------  ------------------------------\n"

	locationWidth = 31
)

// Table renders findings as a fixed-width table: severity (4), code (7),
// location (31, truncated with "..."), then the message.
func Table(findings []rules.Finding) string {
	var b strings.Builder
	b.WriteString(tableHeader)
	b.WriteString(tableRule)
	for _, f := range findings {
		fmt.Fprintf(&b, "%-4s %-7s %-31s  %s\n",
			f.Severity.String(),
			f.Code,
			truncate(f.Location.String(), locationWidth),
			f.Message,
		)
	}
	return b.String()
}

// truncate keeps s within max runes, replacing the tail with "...".
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	keep := max - 3
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + "..."
}
