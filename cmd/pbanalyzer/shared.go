package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nokodsec/pbanalyzer/internal/powerbi"
	"github.com/nokodsec/pbanalyzer/internal/reporter"
	"github.com/nokodsec/pbanalyzer/internal/scanner"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

const toolShared = "shared-reports analyzer"

// tokenEnvVar names the environment variable consulted when --token is not
// passed.
const tokenEnvVar = "PBI_TOKEN"

// NewSharedCmd creates the shared command
func NewSharedCmd() *cobra.Command {
	cfg := config.DefaultConfig()
	opts := &scanOptions{cfg: cfg}
	var token string

	cmd := &cobra.Command{
		Use:   "shared",
		Short: "Analyze reports shared with the whole organization",
		Long: `Analyze every report your tenant shares with the whole organization.

Lists the organization-wide shared reports through the admin API, then pulls
each report's data model schema and exploration to find hidden columns and
columns no visual ever uses. Requires a Power BI access token with admin
API permissions.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv(tokenEnvVar)
			}
			if token == "" {
				return errors.New("a Power BI access token is required: pass --token or set " + tokenEnvVar)
			}
			cfg.Token = token

			return opts.preRun(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShared(cfg)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Power BI access token (default: "+tokenEnvVar+" env)")
	cmd.Flags().StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Power BI API base URL")
	registerScanFlags(cmd, opts)

	return cmd
}

// runShared executes the shared-reports scan workflow
func runShared(cfg *config.Config) error {
	ctx := context.Background()
	cfg.Verbose = verbose
	cfg.Normalize()

	reporter.WelcomeText(os.Stdout, toolShared, isFirstRun)

	client := powerbi.New(cfg)

	fmt.Println("🔎 Listing organization-wide shared reports...")
	targets, err := client.ListSharedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list shared reports: %w", err)
	}
	fmt.Printf("✓ Found %d shared reports\n", len(targets))

	sc := scanner.New(powerbi.NewSharedProvider(client), cfg)
	if !cfg.DryRun {
		sink, err := reporter.NewSharedCSV(reporter.ResultsCSVPath(cfg))
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

	return finishScan(toolShared, cfg, result)
}
