package risk

import (
	"testing"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

func TestSimpleScorerScore(t *testing.T) {
	scorer := NewScorer("simple")

	cases := []struct {
		name   string
		row    models.ResultRow
		expect float64
	}{
		{
			name: "fully_unused_public_report",
			row: models.ResultRow{
				Target:        models.ReportTarget{EmbedURL: "https://app.powerbi.com/view?r=x"},
				UnusedCount:   8,
				TotalColumns:  8,
				HiddenColumns: 12,
			},
			expect: 1.0,
		},
		{
			name: "small_leak_org_share",
			row: models.ResultRow{
				Target:       models.ReportTarget{SharedBy: "Dana"},
				UnusedCount:  1,
				TotalColumns: 10,
			},
			expect: 0.20,
		},
		{
			name:   "nothing_unused_nothing_hidden",
			row:    models.ResultRow{TotalColumns: 10},
			expect: 0.0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scorer.Score(tc.row); got != tc.expect {
				t.Fatalf("expected score %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	scorer := &SimpleScorer{}
	cases := []struct {
		score  float64
		expect string
	}{
		{score: 0.95, expect: "remediate"},
		{score: 0.70, expect: "remediate"},
		{score: 0.45, expect: "review"},
		{score: 0.10, expect: "ok"},
	}

	for _, tc := range cases {
		if got := scorer.Categorize(tc.score); got != tc.expect {
			t.Fatalf("Categorize(%v) = %q, expected %q", tc.score, got, tc.expect)
		}
	}
}

func TestBuildPlanOrdersByExposure(t *testing.T) {
	rows := []models.ResultRow{
		{
			Target:       models.ReportTarget{ID: "mild", Name: "Mild"},
			UnusedCount:  1,
			TotalColumns: 10,
		},
		{
			Target:        models.ReportTarget{ID: "severe", Name: "Severe", EmbedURL: "https://app.powerbi.com/view?r=x"},
			UnusedCount:   9,
			TotalColumns:  10,
			HiddenColumns: 20,
		},
		{
			Target:        models.ReportTarget{ID: "middling", Name: "Middling", SharedBy: "Kim"},
			UnusedCount:   5,
			TotalColumns:  10,
			HiddenColumns: 4,
		},
	}

	plan := BuildPlan(rows, "simple")

	if len(plan.Remediate) != 1 || plan.Remediate[0] != "Severe" {
		t.Fatalf("unexpected remediate bucket %v", plan.Remediate)
	}
	if len(plan.Review) != 1 || plan.Review[0] != "Middling" {
		t.Fatalf("unexpected review bucket %v", plan.Review)
	}
	if len(plan.OK) != 1 || plan.OK[0] != "Mild" {
		t.Fatalf("unexpected ok bucket %v", plan.OK)
	}
}

func TestBuildPlanEmptyInput(t *testing.T) {
	plan := BuildPlan(nil, "simple")
	if plan.Remediate == nil || plan.Review == nil || plan.OK == nil {
		t.Fatal("plan buckets must be empty slices, not nil")
	}
}
