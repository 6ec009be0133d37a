// Package risk ranks analyzed reports by exposure so remediation can start
// with the worst offenders.
package risk

import (
	"sort"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

// Scorer interface for report exposure scoring algorithms
type Scorer interface {
	Score(row models.ResultRow) float64
	Categorize(score float64) string
}

// NewScorer creates a scorer based on the algorithm name
func NewScorer(algorithm string) Scorer {
	switch algorithm {
	case "simple":
		return &SimpleScorer{}
	default:
		return &SimpleScorer{}
	}
}

// SimpleScorer implements a simple exposure scoring algorithm
type SimpleScorer struct{}

// Score calculates an exposure score for a report (0.0 - 1.0). Higher means
// more exposed.
func (s *SimpleScorer) Score(row models.ResultRow) float64 {
	score := 0.0

	// Factor 1: share of the data model that is never queried (50% weight)
	if row.TotalColumns > 0 {
		unusedShare := float64(row.UnusedCount) / float64(row.TotalColumns)
		switch {
		case unusedShare >= 0.75:
			score += 0.50
		case unusedShare >= 0.50:
			score += 0.35
		case unusedShare >= 0.25:
			score += 0.20
		case unusedShare > 0:
			score += 0.10
		}
	}

	// Factor 2: hidden columns riding along in the model (30% weight)
	switch {
	case row.HiddenColumns > 10:
		score += 0.30
	case row.HiddenColumns > 3:
		score += 0.20
	case row.HiddenColumns > 0:
		score += 0.10
	}

	// Factor 3: audience reach (20% weight). A publish-to-web report is
	// reachable by anyone with the link; an org-wide share stops at the
	// tenant boundary.
	if row.Target.EmbedURL != "" {
		score += 0.20
	} else if row.Target.SharedBy != "" {
		score += 0.10
	}

	return score
}

// Categorize returns a remediation category based on the score
func (s *SimpleScorer) Categorize(score float64) string {
	if score >= 0.70 {
		return "remediate"
	} else if score >= 0.30 {
		return "review"
	}
	return "ok"
}

type scoredRow struct {
	label    string
	score    float64
	category string
}

// BuildPlan groups all recorded reports into remediation buckets, each
// ordered by descending exposure.
func BuildPlan(rows []models.ResultRow, algorithm string) models.RemediationPlan {
	scorer := NewScorer(algorithm)

	scored := make([]scoredRow, 0, len(rows))
	for _, row := range rows {
		score := scorer.Score(row)
		scored = append(scored, scoredRow{
			label:    row.Target.Label(),
			score:    score,
			category: scorer.Categorize(score),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	// Empty slices instead of nil to avoid JSON null values
	plan := models.RemediationPlan{
		Remediate: []string{},
		Review:    []string{},
		OK:        []string{},
	}
	for _, entry := range scored {
		switch entry.category {
		case "remediate":
			plan.Remediate = append(plan.Remediate, entry.label)
		case "review":
			plan.Review = append(plan.Review, entry.label)
		default:
			plan.OK = append(plan.OK, entry.label)
		}
	}

	return plan
}
