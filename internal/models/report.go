package models

import "time"

// Report is the complete machine-readable output of one scan.
type Report struct {
	Tool     string             `json:"tool"`
	Version  string             `json:"version"`
	RunID    string             `json:"run_id"`
	Metadata Metadata           `json:"metadata"`
	Rows     []ResultRow        `json:"rows"`
	Columns  []ClassifiedColumn `json:"columns"`
	Errors   []ReportError      `json:"errors"`
	Plan     RemediationPlan    `json:"remediation_plan"`
}

// Metadata contains scan generation info.
type Metadata struct {
	GeneratedAt  time.Time `json:"generated_at"`
	ScanDuration string    `json:"scan_duration"`
	TimeBudget   string    `json:"time_budget"`
	TimedOut     bool      `json:"timed_out"`
	TotalReports int       `json:"total_reports"`
	Successes    int       `json:"successes"`
	Concurrency  int       `json:"concurrency"`
	Version      string    `json:"version"`

	ReportsWithHiddenColumns int `json:"reports_with_hidden_columns"`
	ReportsWithUnusedColumns int `json:"reports_with_unused_columns"`
}

// RemediationPlan groups analyzed reports by exposure severity.
type RemediationPlan struct {
	Remediate []string `json:"remediate"`
	Review    []string `json:"review"`
	OK        []string `json:"ok"`
}
