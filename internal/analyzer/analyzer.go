// Package analyzer reconciles a report's conceptual schema against the
// exploration payload its live viewer actually queried, flagging columns
// that are modeled but never rendered.
package analyzer

import (
	"github.com/nokodsec/pbanalyzer/internal/models"
)

// Analysis is the outcome of one report's analysis pass.
type Analysis struct {
	Columns       []models.ClassifiedColumn
	HiddenColumns int
	UnusedSummary string
	UnusedCount   int
}

// TotalColumns returns the number of columns considered for the report.
func (a *Analysis) TotalColumns() int {
	return len(a.Columns)
}

// AnalyzeReport runs the full per-report pipeline: extract the column
// inventory from the schema document, count hidden columns, classify usage
// against the evidence document. excluded, when non-nil, drops tables from
// classification (hidden counting is unaffected).
func AnalyzeReport(schemaDoc, evidence any, excluded func(table string) bool) (*Analysis, error) {
	columns := ExtractColumns(schemaDoc)
	if excluded != nil {
		kept := columns[:0]
		for _, ref := range columns {
			if excluded(ref.Table) {
				continue
			}
			kept = append(kept, ref)
		}
		columns = kept
	}

	summary, classified, err := Classify(columns, evidence)
	if err != nil {
		return nil, err
	}

	unusedCount := 0
	for _, column := range classified {
		if column.Unused {
			unusedCount++
		}
	}

	return &Analysis{
		Columns:       classified,
		HiddenColumns: CountHidden(schemaDoc),
		UnusedSummary: summary,
		UnusedCount:   unusedCount,
	}, nil
}
