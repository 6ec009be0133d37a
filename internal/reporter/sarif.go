package reporter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nokodsec/pbanalyzer/internal/models"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

const (
	ruleUnusedColumns = "pbanalyzer/UNUSED_COLUMNS"
	ruleHiddenColumns = "pbanalyzer/HIDDEN_COLUMNS"

	sarifSchemaURI = "https://docs.oasis-open.org/sarif/sarif/v2.1.0/cs01/schemas/sarif-schema-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool              sarifTool               `json:"tool"`
	Results           []sarifResult           `json:"results"`
	AutomationDetails *sarifAutomationDetails `json:"automationDetails,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifAutomationDetails struct {
	ID string `json:"id"`
}

type sarifDriver struct {
	Name           string       `json:"name"`
	Version        string       `json:"version,omitempty"`
	InformationURI string       `json:"informationUri,omitempty"`
	ShortDesc      sarifMessage `json:"shortDescription"`
	Rules          []sarifRule  `json:"rules"`
}

type sarifRule struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ShortDesc     sarifMessage `json:"shortDescription"`
	DefaultConfig sarifConfig  `json:"defaultConfiguration"`
}

type sarifConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level,omitempty"`
	Message             sarifMessage      `json:"message"`
	Locations           []sarifLocation   `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          map[string]any    `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	LogicalLocations []sarifLogicalLocation `json:"logicalLocations,omitempty"`
}

type sarifLogicalLocation struct {
	Name               string `json:"name,omitempty"`
	FullyQualifiedName string `json:"fullyQualifiedName,omitempty"`
	Kind               string `json:"kind,omitempty"`
}

// WriteSARIF writes SARIF 2.1.0 output to report.sarif. One result is
// emitted per report with unused columns, and one per report with hidden
// columns, so code-scanning dashboards can track both exposures.
func WriteSARIF(report *models.Report, cfg *config.Config) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	log := buildSARIF(report)
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal SARIF log: %w", err)
	}

	outputPath := filepath.Join(cfg.OutputDir, "report.sarif")
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write report.sarif: %w", err)
	}

	return nil
}

func buildSARIF(report *models.Report) *sarifLog {
	results := make([]sarifResult, 0, len(report.Rows)*2)
	for _, row := range report.Rows {
		results = append(results, sarifResult{
			RuleID: ruleUnusedColumns,
			Level:  "warning",
			Message: sarifMessage{
				Text: fmt.Sprintf("Report %q exposes %d unused column(s): %s",
					row.Target.Label(), row.UnusedCount, row.UnusedSummary),
			},
			Locations:           reportLocations(row.Target),
			PartialFingerprints: fingerprintFor(row.Target.ID, row.UnusedSummary),
			Properties: map[string]any{
				"unusedColumns": row.UnusedCount,
				"totalColumns":  row.TotalColumns,
				"sharedBy":      row.Target.SharedBy,
			},
		})

		if row.HiddenColumns > 0 {
			results = append(results, sarifResult{
				RuleID: ruleHiddenColumns,
				Level:  "note",
				Message: sarifMessage{
					Text: fmt.Sprintf("Report %q carries %d hidden column(s) in its data model",
						row.Target.Label(), row.HiddenColumns),
				},
				Locations:           reportLocations(row.Target),
				PartialFingerprints: fingerprintFor(row.Target.ID, "hidden"),
				Properties: map[string]any{
					"hiddenColumns": row.HiddenColumns,
				},
			})
		}
	}

	return &sarifLog{
		Version: "2.1.0",
		Schema:  sarifSchemaURI,
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           report.Tool,
				Version:        report.Version,
				InformationURI: "https://github.com/nokodsec/pbanalyzer",
				ShortDesc:      sarifMessage{Text: "Detects unused and hidden columns exposed by shared Power BI reports"},
				Rules: []sarifRule{
					{
						ID:            ruleUnusedColumns,
						Name:          "UnusedColumns",
						ShortDesc:     sarifMessage{Text: "Report data model contains columns never queried by its visuals"},
						DefaultConfig: sarifConfig{Level: "warning"},
					},
					{
						ID:            ruleHiddenColumns,
						Name:          "HiddenColumns",
						ShortDesc:     sarifMessage{Text: "Report data model contains hidden columns"},
						DefaultConfig: sarifConfig{Level: "note"},
					},
				},
			}},
			Results:           results,
			AutomationDetails: &sarifAutomationDetails{ID: "pbanalyzer/" + report.RunID},
		}},
	}
}

func reportLocations(target models.ReportTarget) []sarifLocation {
	return []sarifLocation{{
		LogicalLocations: []sarifLogicalLocation{{
			Name:               target.Label(),
			FullyQualifiedName: "powerbi/reports/" + target.ID,
			Kind:               "resource",
		}},
	}}
}

func fingerprintFor(parts ...string) map[string]string {
	hash := sha256.New()
	for _, part := range parts {
		hash.Write([]byte(part))
		hash.Write([]byte{0})
	}
	return map[string]string{
		"primaryLocationHash/v1": hex.EncodeToString(hash.Sum(nil)),
	}
}
