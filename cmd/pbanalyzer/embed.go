package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nokodsec/pbanalyzer/internal/powerbi"
	"github.com/nokodsec/pbanalyzer/internal/reporter"
	"github.com/nokodsec/pbanalyzer/internal/scanner"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

const toolEmbed = "embed-codes analyzer"

// NewEmbedCmd creates the embed command
func NewEmbedCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	opts := &scanOptions{cfg: cfg}

	cmd := &cobra.Command{
		Use:   "embed <embed-codes.csv>",
		Short: "Analyze publicly embedded reports from an embed-codes export",
		Long: `Analyze publish-to-web reports listed in an embed-codes CSV export.

Each row's embed URL is resolved to the report's backend cluster and public
resource key, then the report's data model schema and exploration are pulled
anonymously. No access token is needed; these reports are reachable by
anyone with the link. Output rows echo the input row plus the hidden-column
count and the unused-column summary.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(cfg, args[0])
		},
	}

	registerScanFlags(cmd, opts)

	return cmd
}

// runEmbed executes the embed-codes scan workflow
func runEmbed(cfg *config.Config, path string) error {
	ctx := context.Background()
	cfg.Verbose = verbose
	cfg.Normalize()

	reporter.WelcomeText(os.Stdout, toolEmbed, isFirstRun)

	fmt.Printf("📄 Loading embed codes from %s...\n", path)
	targets, header, err := powerbi.LoadEmbedTargets(path)
	if err != nil {
		return fmt.Errorf("failed to load embed codes: %w", err)
	}
	fmt.Printf("✓ Loaded %d embed codes\n", len(targets))

	client := powerbi.New(cfg)
	sc := scanner.New(powerbi.NewPublicProvider(client), cfg)
	if !cfg.DryRun {
		sink, err := reporter.NewEmbedCSV(reporter.ResultsCSVPath(cfg), header)
		if err != nil {
			return fmt.Errorf("failed to create results CSV: %w", err)
		}
		defer sink.Close()
		sc.Sink = sink
	}

	fmt.Printf("🔍 Analyzing %d reports across %d workers...\n", len(targets), cfg.Concurrency)
	result, err := sc.Scan(ctx, targets)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	return finishScan(toolEmbed, cfg, result)
}
