// Package scanner drives per-report analysis across a fixed worker pool
// under a wall-clock budget. Workers fetch and classify; a single collector
// goroutine folds their outcomes into the running stats, so no counter is
// ever written from two goroutines.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/nokodsec/pbanalyzer/internal/analyzer"
	"github.com/nokodsec/pbanalyzer/internal/models"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

// Provider fetches the two per-report documents for one target. A rate
// limited fetch surfaces as powerbi.RateLimitError and is retried; any other
// failure fails that report only.
type Provider interface {
	FetchConceptualSchema(ctx context.Context, target models.ReportTarget) (any, error)
	FetchEvidence(ctx context.Context, target models.ReportTarget) (any, error)
}

// RowSink receives each recorded row as its report completes. Used to append
// results incrementally instead of holding everything until scan end.
type RowSink interface {
	AppendRow(row models.ResultRow) error
}

// Result is everything one scan produced.
type Result struct {
	Stats *models.ScanStats
	Rows  []models.ResultRow
}

// Scanner coordinates one scan invocation.
type Scanner struct {
	provider Provider
	cfg      *config.Config
	retry    retryConfig

	// Sink, when set, is called from the collector goroutine for every
	// recorded row.
	Sink RowSink
}

// New builds a scanner around a document provider.
func New(provider Provider, cfg *config.Config) *Scanner {
	return &Scanner{
		provider: provider,
		cfg:      cfg,
		retry: retryConfig{
			maxAttempts:    cfg.MaxRetries,
			initialBackoff: cfg.RetryBaseDelay,
			sleep:          sleepWithContext,
		},
	}
}

// outcome is what one worker hands the collector for one report.
type outcome struct {
	target  models.ReportTarget
	row     *models.ResultRow
	columns []models.ClassifiedColumn
	hidden  int
	aborted bool
	err     error
}

// Scan analyzes all targets and returns rows in completion order. The time
// budget stops scheduling once exceeded; tasks already handed to a worker
// run to completion, tasks still queued are dropped without becoming errors.
func (s *Scanner) Scan(ctx context.Context, targets []models.ReportTarget) (*Result, error) {
	start := time.Now()

	budget := s.cfg.TimeBudget
	if budget < 0 {
		budget = 0
	}
	budgetCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	workers := s.cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan models.ReportTarget)
	outcomes := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for target := range jobs {
				// The budget is advisory: it gates starting a report, it
				// does not kill a report mid-flight.
				if budgetCtx.Err() != nil {
					outcomes <- outcome{target: target, aborted: true}
					continue
				}
				outcomes <- s.analyzeOne(ctx, target)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, target := range targets {
			select {
			case <-budgetCtx.Done():
				return
			case jobs <- target:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	stats := &models.ScanStats{Targets: len(targets)}
	var rows []models.ResultRow

	for out := range outcomes {
		if out.aborted {
			slog.Debug("report skipped, scan budget exhausted", "report", out.target.Label())
			continue
		}
		if out.err != nil {
			slog.Warn("report analysis failed", "report", out.target.Label(), "error", out.err)
			stats.Errors = append(stats.Errors, models.ReportError{
				ReportID: out.target.ID,
				Message:  out.err.Error(),
			})
			continue
		}

		stats.Successes++
		stats.MergeColumns(out.columns)
		if out.hidden > 0 {
			stats.ReportsWithHiddenColumns++
		}
		if out.row != nil {
			stats.ReportsWithUnusedColumns++
			rows = append(rows, *out.row)
			if s.Sink != nil {
				if err := s.Sink.AppendRow(*out.row); err != nil {
					slog.Warn("failed to append result row", "report", out.target.Label(), "error", err)
				}
			}
		}
	}

	stats.TimedOut = errors.Is(budgetCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return &Result{Stats: stats, Rows: rows}, err
	}
	return &Result{Stats: stats, Rows: rows}, nil
}

// analyzeOne runs the fetch-then-classify sequence for a single report.
// Failures are returned in the outcome, never propagated; one bad report
// must not stop the scan.
func (s *Scanner) analyzeOne(ctx context.Context, target models.ReportTarget) outcome {
	out := outcome{target: target}

	var schemaDoc any
	err := executeWithRetry(ctx, s.retry, func() error {
		var fetchErr error
		schemaDoc, fetchErr = s.provider.FetchConceptualSchema(ctx, target)
		return fetchErr
	})

	var evidence any
	if err == nil {
		err = executeWithRetry(ctx, s.retry, func() error {
			var fetchErr error
			evidence, fetchErr = s.provider.FetchEvidence(ctx, target)
			return fetchErr
		})
	}
	if err != nil {
		out.err = eris.Wrapf(err, "failed to fetch report %s", target.Label())
		return out
	}

	analysis, err := analyzer.AnalyzeReport(schemaDoc, evidence, s.cfg.IsTableExcluded)
	if err != nil {
		out.err = eris.Wrapf(err, "failed to classify report %s", target.Label())
		return out
	}

	out.hidden = analysis.HiddenColumns
	out.columns = analysis.Columns
	if analysis.UnusedSummary != "" {
		out.row = &models.ResultRow{
			Target:        target,
			HiddenColumns: analysis.HiddenColumns,
			UnusedSummary: analysis.UnusedSummary,
			UnusedCount:   analysis.UnusedCount,
			TotalColumns:  analysis.TotalColumns(),
		}
	}
	return out
}
