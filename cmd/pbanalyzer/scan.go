package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nokodsec/pbanalyzer/internal/baseline"
	"github.com/nokodsec/pbanalyzer/internal/reporter"
	"github.com/nokodsec/pbanalyzer/internal/risk"
	"github.com/nokodsec/pbanalyzer/internal/scanner"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

// scanOptions carries the flag state shared by the shared and embed commands.
// Durations are collected as strings and parsed in PreRunE so extended units
// like 7d work.
type scanOptions struct {
	cfg            *config.Config
	configPath     string
	timeBudget     string
	requestTimeout string
}

// registerScanFlags adds the flags common to both scan commands.
func registerScanFlags(cmd *cobra.Command, opts *scanOptions) {
	cfg := opts.cfg

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a .pbanalyzer.yaml config file")

	// Scan flags
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Worker pool size")
	cmd.Flags().StringVar(&opts.timeBudget, "time-budget", "10m", "Scan wall-clock budget (e.g., 5m, 30m, 1h)")
	cmd.Flags().StringArrayVar(&cfg.ExcludeTables, "exclude-table", nil, "Table name or glob pattern to skip (repeatable)")

	// Power BI service flags
	cmd.Flags().IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Power BI API rate limit (requests/sec)")
	cmd.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Attempts per rate limited request")
	cmd.Flags().StringVar(&opts.requestTimeout, "request-timeout", "30s", "Per-request timeout (e.g., 30s, 2m)")

	// Output flags
	cmd.Flags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	cmd.Flags().StringVar(&cfg.Format, "format", cfg.Format, "Output format (csv, sarif)")

	// Baseline flags
	cmd.Flags().StringVar(&cfg.BaselinePath, "baseline", "", "Baseline file of acknowledged findings")
	cmd.Flags().BoolVar(&cfg.UpdateBaseline, "update-baseline", false, "Record current findings into the baseline file")

	// Operational flags
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", false, "Dry run mode (don't write output)")
}

// preRun loads the optional config file and parses duration flags. File
// values apply only where the corresponding flag was not set, so explicit
// command-line values always win.
func (o *scanOptions) preRun(cmd *cobra.Command) error {
	var fileCfg *config.FileConfig
	var err error

	if o.configPath != "" {
		fileCfg, err = config.LoadFile(o.configPath)
	} else {
		fileCfg, _, err = config.AutoLoadFile()
	}
	if err != nil {
		return err
	}
	if err := applyFileConfig(cmd, o, fileCfg); err != nil {
		return err
	}

	if o.timeBudget != "" {
		o.cfg.TimeBudget, err = config.ParseDuration(o.timeBudget)
		if err != nil {
			return fmt.Errorf("invalid --time-budget duration: %w", err)
		}
	}
	if o.requestTimeout != "" {
		o.cfg.RequestTimeout, err = config.ParseDuration(o.requestTimeout)
		if err != nil {
			return fmt.Errorf("invalid --request-timeout duration: %w", err)
		}
	}

	if o.cfg.Format != "csv" && o.cfg.Format != "sarif" {
		return fmt.Errorf("invalid --format value: %q (expected csv or sarif)", o.cfg.Format)
	}

	return nil
}

// applyFileConfig merges file values into the config, skipping every field
// whose flag was set on the command line.
func applyFileConfig(cmd *cobra.Command, o *scanOptions, fileCfg *config.FileConfig) error {
	if fileCfg == nil {
		return nil
	}

	flags := cmd.Flags()
	merged := *fileCfg
	if flags.Changed("api-url") {
		merged.APIBaseURL = ""
	}
	if flags.Changed("concurrency") {
		merged.Concurrency = nil
	}
	if flags.Changed("rate-limit") {
		merged.RateLimit = nil
	}
	if flags.Changed("max-retries") {
		merged.MaxRetries = nil
	}
	if flags.Changed("output") {
		merged.OutputDir = ""
	}
	if flags.Changed("format") {
		merged.Format = ""
	}
	if flags.Changed("time-budget") {
		merged.TimeBudget = ""
	} else if merged.TimeBudget != "" {
		// Keep the file's budget instead of reparsing the flag default.
		o.timeBudget = ""
	}

	return merged.Apply(o.cfg)
}

// finishScan runs the post-scan pipeline: rank exposure, apply the baseline,
// write outputs, and surface remaining findings through the exit code.
func finishScan(tool string, cfg *config.Config, result *scanner.Result) error {
	plan := risk.BuildPlan(result.Rows, "simple")
	report := reporter.BuildReport(tool, version, cfg, result.Stats, result.Rows, plan)

	if cfg.BaselinePath != "" || cfg.UpdateBaseline {
		path := cfg.BaselinePath
		if path == "" {
			path = baseline.DefaultPath
		}

		known, err := baseline.Load(path)
		if err != nil {
			return fmt.Errorf("failed to load baseline: %w", err)
		}

		// Collect before suppressing so an updated baseline keeps every
		// current finding, including ones already acknowledged.
		fingerprints := baseline.CollectFingerprints(report)
		suppressed, _ := baseline.SuppressKnown(report, known)
		if suppressed > 0 {
			fmt.Printf("✓ Suppressed %d baselined findings\n", suppressed)
		}

		if cfg.UpdateBaseline {
			baseline.AddAll(known, fingerprints)
			if err := baseline.Save(path, known); err != nil {
				return fmt.Errorf("failed to update baseline: %w", err)
			}
			fmt.Printf("✓ Baseline updated: %s\n", path)
		}
	}

	if cfg.DryRun {
		fmt.Println("🏃 Dry run mode - skipping output")
	} else {
		fmt.Println("📝 Writing report...")
		if err := reporter.New(cfg).Generate(report); err != nil {
			return fmt.Errorf("failed to generate report: %w", err)
		}
		fmt.Printf("✓ Report written to: %s\n", cfg.OutputDir)
	}

	if remaining := len(report.Rows); remaining > 0 {
		return &FindingsError{Count: remaining}
	}
	return nil
}
