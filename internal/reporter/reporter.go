// Package reporter renders completed scans: a CSV of per-report findings
// written incrementally during the scan, plus JSON, SARIF and human-readable
// summary outputs written at scan end.
package reporter

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nokodsec/pbanalyzer/internal/models"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

// Reporter renders one completed scan into the configured output formats.
type Reporter interface {
	Generate(report *models.Report) error
}

// reporter implements the Reporter interface
type reporter struct {
	config *config.Config
}

// New creates a new reporter instance
func New(cfg *config.Config) Reporter {
	return &reporter{
		config: cfg,
	}
}

// Generate writes the machine-readable outputs in parallel, then prints the
// human summary.
func (r *reporter) Generate(report *models.Report) error {
	var g errgroup.Group

	g.Go(func() error {
		return WriteJSON(report, r.config)
	})
	if r.config.Format == "sarif" {
		g.Go(func() error {
			return WriteSARIF(report, r.config)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return WriteText(report, r.config)
}

// ResultsCSVPath returns the canonical location of the findings CSV.
func ResultsCSVPath(cfg *config.Config) string {
	return filepath.Join(cfg.OutputDir, "results.csv")
}

// SummaryTXTPath returns the canonical location of the summary text file.
func SummaryTXTPath(cfg *config.Config) string {
	return filepath.Join(cfg.OutputDir, "summary.txt")
}

// BuildReport assembles the machine-readable report from one scan outcome.
func BuildReport(tool, version string, cfg *config.Config, stats *models.ScanStats, rows []models.ResultRow, plan models.RemediationPlan) *models.Report {
	columns := make([]models.ClassifiedColumn, 0, len(stats.Columns))
	for _, column := range stats.Columns {
		columns = append(columns, *column)
	}

	return &models.Report{
		Tool:    tool,
		Version: version,
		RunID:   uuid.NewString(),
		Metadata: models.Metadata{
			GeneratedAt:              time.Now().UTC(),
			ScanDuration:             stats.Duration.Round(time.Millisecond).String(),
			TimeBudget:               cfg.TimeBudget.String(),
			TimedOut:                 stats.TimedOut,
			TotalReports:             stats.Targets,
			Successes:                stats.Successes,
			Concurrency:              cfg.Concurrency,
			Version:                  version,
			ReportsWithHiddenColumns: stats.ReportsWithHiddenColumns,
			ReportsWithUnusedColumns: stats.ReportsWithUnusedColumns,
		},
		Rows:    rows,
		Columns: columns,
		Errors:  stats.Errors,
		Plan:    plan,
	}
}
