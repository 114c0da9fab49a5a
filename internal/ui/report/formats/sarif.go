package formats

import (
	"encoding/json"

	"klepto/internal/engine/rules"
	"klepto/internal/shared/util"
	"klepto/internal/shared/version"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"
)

// sarifReport is the top-level SARIF document.
type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// GenerateSARIF builds a SARIF v2.1.0 document with one result per finding.
// Rule ids are finding codes; names come from registry when it knows the
// code. File URIs are made relative to projectRoot so reports are safe to
// share.
func GenerateSARIF(projectRoot string, findings []rules.Finding, registry *rules.Registry) ([]byte, error) {
	names := map[string]string{}
	if registry != nil {
		for _, r := range registry.Rules() {
			names[r.Code()] = r.Name()
		}
	}

	ruleLevels := map[string]string{}
	results := make([]sarifResult, 0, len(findings))
	for _, f := range findings {
		level := severityToLevel(f.Severity)
		if _, seen := ruleLevels[f.Code]; !seen {
			ruleLevels[f.Code] = level
		}

		result := sarifResult{
			RuleID:  f.Code,
			Level:   level,
			Message: sarifMessage{Text: f.Message},
		}
		if f.Location.Path != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       relPath(projectRoot, f.Location.Path),
						URIBaseID: "%SRCROOT%",
					},
				},
			}
			if line, col := position(f.Location); line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: line, StartColumn: col}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}

	codes := util.SortedStringKeys(ruleLevels)
	sarifRules := make([]sarifRule, 0, len(codes))
	for _, code := range codes {
		name := nonEmpty(names[code], code)
		sarifRules = append(sarifRules, sarifRule{
			ID:               code,
			Name:             name,
			ShortDescription: sarifMessage{Text: name},
			DefaultConfig:    sarifRuleDefaultConfig{Level: ruleLevels[code]},
		})
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "klepto",
						Version: version.Version,
						Rules:   sarifRules,
					},
				},
				Results: results,
			},
		},
	}
	return json.MarshalIndent(report, "", "  ")
}

func severityToLevel(s rules.Severity) string {
	switch s {
	case rules.Deny:
		return "error"
	case rules.Warn:
		return "warning"
	default:
		return "note"
	}
}
