package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nokodsec/pbanalyzer/internal/models"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

const bannerWidth = 65

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// WelcomeText prints the project banner shown before a scan starts. The
// background section is only shown on the tool's first run.
func WelcomeText(out io.Writer, tool string, firstRun bool) {
	line := strings.Repeat("=", bannerWidth)

	fmt.Fprintln(out, line)
	fmt.Fprintln(out, centerText("Welcome to Power BI Analyzer - Report Analysis Tool", bannerWidth))
	fmt.Fprintln(out, line)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Project: Power BI Analyzer")
	fmt.Fprintf(out, "Tool: %s\n", tool)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "This tool is part of the Power BI Analyzer project, which aims to help")
	fmt.Fprintln(out, "organizations identify unused data sources in their Power BI reports.")
	fmt.Fprintln(out, "Unused columns in your reports can pose a security risk, and it is")
	fmt.Fprintln(out, "essential to identify and remove them to prevent data breaches.")

	if firstRun {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "BACKGROUND:")
		fmt.Fprintln(out, "On June 19, 2024, Nokod Security published a warning about a data leakage")
		fmt.Fprintln(out, "vulnerability in the Microsoft Power BI service. For more details, visit:")
		fmt.Fprintln(out, "https://nokodsecurity.com/blog/in-plain-sight-how-microsoft-power-bi-reports-expose-sensitive-data-on-the-web/")
	}

	fmt.Fprintln(out, line)
}

// WriteText renders the human-readable scan summary to summary.txt and to
// stdout.
func WriteText(report *models.Report, cfg *config.Config) error {
	return writeText(report, cfg, os.Stdout)
}

func writeText(report *models.Report, cfg *config.Config, out io.Writer) error {
	if report == nil {
		return fmt.Errorf("report is nil")
	}
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	rendered := renderSummary(report, ResultsCSVPath(cfg))
	outputPath := filepath.Join(cfg.OutputDir, "summary.txt")

	if err := os.WriteFile(outputPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("failed to write summary.txt: %w", err)
	}

	if _, err := io.WriteString(out, rendered); err != nil {
		return fmt.Errorf("failed to write summary to output: %w", err)
	}

	return nil
}

func renderSummary(report *models.Report, resultsPath string) string {
	var b strings.Builder
	line := strings.Repeat("=", bannerWidth)

	b.WriteString("\n")
	fmt.Fprintf(&b, "Project: Power BI Analyzer\n")
	fmt.Fprintf(&b, "Tool: %s\n", report.Tool)
	b.WriteString("\n")
	b.WriteString(line + "\n")
	b.WriteString(centerText("Results", bannerWidth) + "\n")
	b.WriteString(line + "\n")
	b.WriteString("\n")

	fmt.Fprintf(&b, "Number of reports analyzed successfully: %d/%d\n",
		report.Metadata.Successes, report.Metadata.TotalReports)
	fmt.Fprintf(&b, "Total tables scanned: %d\n", countTables(report.Columns))
	fmt.Fprintf(&b, "Unique columns scanned: %d\n", len(report.Columns))
	fmt.Fprintf(&b, "Unused columns found: %d\n", countUnused(report.Columns))
	fmt.Fprintf(&b, "Reports with unused columns: %d\n", report.Metadata.ReportsWithUnusedColumns)
	fmt.Fprintf(&b, "Reports with hidden columns: %d\n", report.Metadata.ReportsWithHiddenColumns)
	fmt.Fprintf(&b, "Scan time: %s\n", report.Metadata.ScanDuration)
	if report.Metadata.TimedOut {
		fmt.Fprintf(&b, "Scan stopped after reaching the time budget of %s.\n", report.Metadata.TimeBudget)
	}
	b.WriteString("\n")
	b.WriteString(line + "\n")

	for _, reportErr := range report.Errors {
		fmt.Fprintf(&b, "Failed to analyze %q. Error: %q\n", reportErr.ReportID, formatErrorMessage(reportErr.Message))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Full analysis saved to %s\n", resultsPath)

	return b.String()
}

// formatErrorMessage splits identifier-style words so raw error chains read
// as plain text in the summary.
func formatErrorMessage(message string) string {
	spaced := camelBoundary.ReplaceAllString(message, "$1 $2")
	return strings.Join(strings.Fields(spaced), " ")
}

func centerText(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}

func countTables(columns []models.ClassifiedColumn) int {
	tables := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		tables[column.Table] = struct{}{}
	}
	return len(tables)
}

func countUnused(columns []models.ClassifiedColumn) int {
	count := 0
	for _, column := range columns {
		if column.Unused {
			count++
		}
	}
	return count
}
