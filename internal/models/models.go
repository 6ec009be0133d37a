package models

import "time"

// ColumnRef identifies one data-model column by its (table, column) pair.
// The pair is the only identity; refs are produced per report and discarded
// after that report's analysis pass.
type ColumnRef struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

// Key returns the "Table.Column" form matched against evidence documents.
func (c ColumnRef) Key() string {
	return c.Table + "." + c.Column
}

// ClassifiedColumn is a ColumnRef annotated by the usage classifier. Unused
// is the only mutable field; once a pair has been seen unused in the global
// accumulator it never reverts.
type ClassifiedColumn struct {
	ColumnRef
	Unused bool `json:"unused,omitempty"`
}

// ReportTarget identifies one report to analyze. Created once from a listing
// call or an input file row, read-only during analysis.
type ReportTarget struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	SharedBy    string `json:"shared_by,omitempty"`
	Region      string `json:"region,omitempty"`       // cluster host for org-shared reports
	EmbedURL    string `json:"embed_url,omitempty"`    // public embed link
	ResourceKey string `json:"resource_key,omitempty"` // decoded from the embed link

	// SourceRow carries the original input CSV row through to the output
	// file in embed mode.
	SourceRow []string `json:"-"`
}

// Label returns the most descriptive identifier available for messages.
func (t ReportTarget) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.ID
}

// ResultRow is the output unit for one report that had unused columns.
type ResultRow struct {
	Target        ReportTarget `json:"target"`
	HiddenColumns int          `json:"hidden_columns"`
	UnusedSummary string       `json:"unused_summary"`
	UnusedCount   int          `json:"unused_count"`
	TotalColumns  int          `json:"total_columns"`
}

// ReportError records an isolated per-report analysis failure.
type ReportError struct {
	ReportID string `json:"report_id"`
	Message  string `json:"message"`
}

// ScanStats accumulates scan-wide counters for one scan invocation. It is
// owned by the coordinator's single collector goroutine; workers never touch
// it directly.
type ScanStats struct {
	Targets                  int                 `json:"targets"`
	Successes                int                 `json:"successes"`
	ReportsWithHiddenColumns int                 `json:"reports_with_hidden_columns"`
	ReportsWithUnusedColumns int                 `json:"reports_with_unused_columns"`
	Columns                  []*ClassifiedColumn `json:"columns"`
	Errors                   []ReportError       `json:"errors"`
	TimedOut                 bool                `json:"timed_out"`
	Duration                 time.Duration       `json:"-"`

	index map[ColumnRef]*ClassifiedColumn
}

// MergeColumns folds one report's classified columns into the global set.
// New pairs are appended in encounter order; pairs already present only gain
// the unused flag, never lose it.
func (s *ScanStats) MergeColumns(columns []ClassifiedColumn) {
	if s.index == nil {
		s.index = make(map[ColumnRef]*ClassifiedColumn)
		for _, existing := range s.Columns {
			s.index[existing.ColumnRef] = existing
		}
	}

	for _, column := range columns {
		if existing, ok := s.index[column.ColumnRef]; ok {
			if column.Unused {
				existing.Unused = true
			}
			continue
		}
		entry := &ClassifiedColumn{ColumnRef: column.ColumnRef, Unused: column.Unused}
		s.Columns = append(s.Columns, entry)
		s.index[column.ColumnRef] = entry
	}
}

// UniqueTables returns the number of distinct tables seen across the scan.
func (s *ScanStats) UniqueTables() int {
	tables := make(map[string]struct{}, len(s.Columns))
	for _, column := range s.Columns {
		tables[column.Table] = struct{}{}
	}
	return len(tables)
}

// UnusedColumnCount returns how many distinct pairs were ever seen unused.
func (s *ScanStats) UnusedColumnCount() int {
	count := 0
	for _, column := range s.Columns {
		if column.Unused {
			count++
		}
	}
	return count
}
