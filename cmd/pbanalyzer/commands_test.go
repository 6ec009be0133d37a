package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/nokodsec/pbanalyzer/internal/models"
	"github.com/nokodsec/pbanalyzer/internal/scanner"
	"github.com/nokodsec/pbanalyzer/pkg/config"
)

// isolate keeps tests away from any real config file in the working
// directory or the home directory.
func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(tempDir); err != nil {
		t.Fatalf("failed to change working directory: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(cwd); err != nil {
			t.Fatalf("failed to restore working directory: %v", err)
		}
	})
	t.Setenv("HOME", tempDir)
	return tempDir
}

func TestNewSharedCmdPreRunValidation(t *testing.T) {
	isolate(t)

	tests := []struct {
		name           string
		timeBudget     string
		requestTimeout string
		format         string
		wantErr        string
	}{
		{
			name:           "valid_defaults",
			timeBudget:     "10m",
			requestTimeout: "30s",
			format:         "csv",
			wantErr:        "",
		},
		{
			name:           "valid_sarif_format",
			timeBudget:     "10m",
			requestTimeout: "30s",
			format:         "sarif",
			wantErr:        "",
		},
		{
			name:           "valid_day_unit_budget",
			timeBudget:     "1d",
			requestTimeout: "30s",
			format:         "csv",
			wantErr:        "",
		},
		{
			name:           "invalid_time_budget",
			timeBudget:     "bad",
			requestTimeout: "30s",
			format:         "csv",
			wantErr:        "invalid --time-budget duration",
		},
		{
			name:           "invalid_request_timeout",
			timeBudget:     "10m",
			requestTimeout: "bad",
			format:         "csv",
			wantErr:        "invalid --request-timeout duration",
		},
		{
			name:           "invalid_format",
			timeBudget:     "10m",
			requestTimeout: "30s",
			format:         "yaml",
			wantErr:        "invalid --format value",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := NewSharedCmd()

			if err := cmd.Flags().Set("token", "test-token"); err != nil {
				t.Fatalf("failed to set token flag: %v", err)
			}
			if err := cmd.Flags().Set("time-budget", tc.timeBudget); err != nil {
				t.Fatalf("failed to set time-budget flag: %v", err)
			}
			if err := cmd.Flags().Set("request-timeout", tc.requestTimeout); err != nil {
				t.Fatalf("failed to set request-timeout flag: %v", err)
			}
			if err := cmd.Flags().Set("format", tc.format); err != nil {
				t.Fatalf("failed to set format flag: %v", err)
			}

			err := cmd.PreRunE(cmd, nil)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestNewSharedCmdRequiresToken(t *testing.T) {
	isolate(t)
	t.Setenv(tokenEnvVar, "")

	cmd := NewSharedCmd()
	err := cmd.PreRunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "access token is required") {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestNewSharedCmdTokenFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv(tokenEnvVar, "env-token")

	cmd := NewSharedCmd()
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected env token to satisfy PreRun validation, got %v", err)
	}
}

func TestNewEmbedCmdAutoLoadsConfigFile(t *testing.T) {
	tempDir := isolate(t)

	configContent := "time_budget: 20m\nformat: sarif\nconcurrency: 2\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".pbanalyzer.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := NewEmbedCmd()
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected auto-loaded config file to satisfy PreRun validation, got %v", err)
	}
}

func TestNewEmbedCmdConfigFlagLoadsCustomPath(t *testing.T) {
	isolate(t)

	customPath := filepath.Join(t.TempDir(), "custom-config.yaml")
	configContent := "format: sarif\n"
	if err := os.WriteFile(customPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write custom config file: %v", err)
	}

	cmd := NewEmbedCmd()
	if err := cmd.Flags().Set("config", customPath); err != nil {
		t.Fatalf("failed to set config flag: %v", err)
	}
	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected --config path to load successfully, got %v", err)
	}
}

func TestNewSharedCmdFlagsOverrideConfigFileValues(t *testing.T) {
	tempDir := isolate(t)

	// Config file intentionally contains invalid format and budget values.
	configContent := "format: yaml\ntime_budget: bad-duration\n"
	if err := os.WriteFile(filepath.Join(tempDir, ".pbanalyzer.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cmd := NewSharedCmd()
	if err := cmd.Flags().Set("token", "test-token"); err != nil {
		t.Fatalf("failed to set token flag: %v", err)
	}
	if err := cmd.Flags().Set("format", "sarif"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	if err := cmd.Flags().Set("time-budget", "5m"); err != nil {
		t.Fatalf("failed to set time-budget flag: %v", err)
	}

	if err := cmd.PreRunE(cmd, nil); err != nil {
		t.Fatalf("expected CLI flags to override invalid config-file values, got %v", err)
	}
}

func TestApplyFileConfigMerging(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := &scanOptions{cfg: cfg, timeBudget: "10m"}
	cmd := &cobra.Command{}
	registerScanFlags(cmd, opts)

	fileCfg := &config.FileConfig{TimeBudget: "20m", Format: "sarif"}
	if err := applyFileConfig(cmd, opts, fileCfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.timeBudget != "" {
		t.Fatalf("expected file budget to replace the flag default, still have %q", opts.timeBudget)
	}
	if cfg.TimeBudget.String() != "20m0s" {
		t.Fatalf("expected file budget 20m, got %s", cfg.TimeBudget)
	}
	if cfg.Format != "sarif" {
		t.Fatalf("expected file format sarif, got %q", cfg.Format)
	}
}

func TestApplyFileConfigFlagsWin(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := &scanOptions{cfg: cfg}
	cmd := &cobra.Command{}
	registerScanFlags(cmd, opts)

	if err := cmd.Flags().Set("format", "csv"); err != nil {
		t.Fatalf("failed to set format flag: %v", err)
	}
	if err := cmd.Flags().Set("time-budget", "5m"); err != nil {
		t.Fatalf("failed to set time-budget flag: %v", err)
	}

	fileCfg := &config.FileConfig{TimeBudget: "20m", Format: "sarif"}
	if err := applyFileConfig(cmd, opts, fileCfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Format != "csv" {
		t.Fatalf("expected flag format to win, got %q", cfg.Format)
	}
	if opts.timeBudget != "5m" {
		t.Fatalf("expected flag budget to win, got %q", opts.timeBudget)
	}
}

func TestRunEmbedFailsOnMissingCSV(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DryRun = true

	err := runEmbed(cfg, filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil || !strings.Contains(err.Error(), "failed to load embed codes") {
		t.Fatalf("expected embed codes load error, got %v", err)
	}
}

func TestRunSharedFailsOnListingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.APIBaseURL = server.URL
	cfg.Token = "test-token"
	cfg.DryRun = true

	err := runShared(cfg)
	if err == nil || !strings.Contains(err.Error(), "failed to list shared reports") {
		t.Fatalf("expected listing error, got %v", err)
	}
}

func scanResultWithFinding() *scanner.Result {
	return &scanner.Result{
		Stats: &models.ScanStats{Targets: 1, Successes: 1, ReportsWithUnusedColumns: 1},
		Rows: []models.ResultRow{
			{
				Target:        models.ReportTarget{ID: "r1", Name: "Sales"},
				UnusedSummary: "Sales: [Price]",
				UnusedCount:   1,
				TotalColumns:  3,
			},
		},
	}
}

func TestFinishScanSignalsFindings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DryRun = true

	err := finishScan(toolShared, cfg, scanResultWithFinding())

	var fe *FindingsError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FindingsError, got %v", err)
	}
	if fe.Count != 1 {
		t.Fatalf("expected 1 finding, got %d", fe.Count)
	}
}

func TestFinishScanNoFindings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DryRun = true

	result := &scanner.Result{Stats: &models.ScanStats{Targets: 2, Successes: 2}}
	if err := finishScan(toolShared, cfg, result); err != nil {
		t.Fatalf("expected clean exit without findings, got %v", err)
	}
}

func TestFinishScanBaselineRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DryRun = true
	cfg.BaselinePath = filepath.Join(t.TempDir(), "baseline.json")
	cfg.UpdateBaseline = true

	// First run records the finding and still reports it.
	err := finishScan(toolShared, cfg, scanResultWithFinding())
	var fe *FindingsError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FindingsError on first run, got %v", err)
	}
	if _, statErr := os.Stat(cfg.BaselinePath); statErr != nil {
		t.Fatalf("expected baseline file to be written: %v", statErr)
	}

	// Second run suppresses the now-acknowledged finding.
	cfg.UpdateBaseline = false
	if err := finishScan(toolShared, cfg, scanResultWithFinding()); err != nil {
		t.Fatalf("expected baselined finding to be suppressed, got %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		expect int
	}{
		{name: "nil", err: nil, expect: ExitSuccess},
		{name: "findings", err: &FindingsError{Count: 3}, expect: ExitFindings},
		{name: "network", err: errors.New("dial tcp: connection refused"), expect: ExitNetwork},
		{name: "not_found", err: errors.New("open x: no such file or directory"), expect: ExitNotFound},
		{name: "invalid_arg", err: errors.New("invalid --format value"), expect: ExitInvalidArg},
		{name: "internal", err: errors.New("something broke"), expect: ExitInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.expect {
				t.Fatalf("classifyError(%v) = %d, expected %d", tc.err, got, tc.expect)
			}
		})
	}
}

func TestServeCommandAndRunServeValidation(t *testing.T) {
	cmd := NewServeCmd()
	if err := cmd.Args(cmd, []string{"a", "b"}); err == nil {
		t.Fatal("expected args validation error for too many arguments")
	}

	if err := runServe(filepath.Join(t.TempDir(), "missing"), 8080); err == nil || !strings.Contains(err.Error(), "directory not found") {
		t.Fatalf("expected missing directory error, got %v", err)
	}

	dir := t.TempDir()
	if err := runServe(dir, 8080); err == nil || !strings.Contains(err.Error(), "report.json not found") {
		t.Fatalf("expected missing report.json error, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	if err := NewVersionCmd().Execute(); err != nil {
		t.Fatalf("version command execution failed: %v", err)
	}
}
