package reporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nokodsec/pbanalyzer/pkg/config"
)

func TestWriteSARIF(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	if err := WriteSARIF(sampleReport(), cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "report.sarif"))
	if err != nil {
		t.Fatalf("sarif file missing: %v", err)
	}

	var log sarifLog
	if err := json.Unmarshal(data, &log); err != nil {
		t.Fatalf("sarif output is not valid JSON: %v", err)
	}

	if log.Version != "2.1.0" {
		t.Fatalf("unexpected SARIF version %q", log.Version)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("expected one run, got %d", len(log.Runs))
	}

	run := log.Runs[0]
	if run.Tool.Driver.Name != "pbanalyzer" {
		t.Fatalf("unexpected driver name %q", run.Tool.Driver.Name)
	}
	if len(run.Tool.Driver.Rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(run.Tool.Driver.Rules))
	}

	// One unused-columns result plus one hidden-columns result for r1.
	if len(run.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(run.Results))
	}
	if run.Results[0].RuleID != ruleUnusedColumns {
		t.Fatalf("unexpected first rule %q", run.Results[0].RuleID)
	}
	if run.Results[1].RuleID != ruleHiddenColumns {
		t.Fatalf("unexpected second rule %q", run.Results[1].RuleID)
	}
	if run.Results[0].PartialFingerprints["primaryLocationHash/v1"] == "" {
		t.Fatal("expected a stable fingerprint on each result")
	}

	location := run.Results[0].Locations[0].LogicalLocations[0]
	if location.FullyQualifiedName != "powerbi/reports/r1" {
		t.Fatalf("unexpected location %q", location.FullyQualifiedName)
	}
}

func TestWriteSARIFNilReport(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()

	if err := WriteSARIF(nil, cfg); err == nil {
		t.Fatal("expected error for nil report")
	}
}

func TestFingerprintIsDeterministic(t *testing.T) {
	a := fingerprintFor("r1", "Sales: [Price]")
	b := fingerprintFor("r1", "Sales: [Price]")
	c := fingerprintFor("r2", "Sales: [Price]")

	if a["primaryLocationHash/v1"] != b["primaryLocationHash/v1"] {
		t.Fatal("same input must fingerprint identically")
	}
	if a["primaryLocationHash/v1"] == c["primaryLocationHash/v1"] {
		t.Fatal("different reports must fingerprint differently")
	}
}
