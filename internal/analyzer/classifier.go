package analyzer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

var quoteStripper = strings.NewReplacer(`"`, "", "'", "")

// Classify determines which of the report's columns never appear in the
// evidence document and renders a compact per-table summary.
//
// Matching is a quote-stripped textual containment check: a column is
// candidate-unused iff the literal "Table.Column" substring is absent from
// the serialized evidence with quote characters removed. This is a
// deliberate approximation (a column name occurring elsewhere in the payload
// counts as used) and is kept as-is.
//
// The summary lists, per table in first-seen order, either "[.*]" when every
// column of the table is unused or the unused columns in their original
// order. Tables without unused columns are omitted.
func Classify(columns []models.ColumnRef, evidence any) (string, []models.ClassifiedColumn, error) {
	payload, err := json.Marshal(evidence)
	if err != nil {
		return "", nil, fmt.Errorf("serialize evidence document: %w", err)
	}
	stripped := quoteStripper.Replace(string(payload))

	classified := make([]models.ClassifiedColumn, len(columns))
	tableOrder := make([]string, 0)
	byTable := make(map[string][]int)
	for i, ref := range columns {
		classified[i] = models.ClassifiedColumn{ColumnRef: ref}
		if !strings.Contains(stripped, ref.Key()) {
			classified[i].Unused = true
		}
		if _, seen := byTable[ref.Table]; !seen {
			tableOrder = append(tableOrder, ref.Table)
		}
		byTable[ref.Table] = append(byTable[ref.Table], i)
	}

	entries := make([]string, 0, len(tableOrder))
	for _, table := range tableOrder {
		indexes := byTable[table]

		all := make([]string, 0, len(indexes))
		unused := make([]string, 0, len(indexes))
		for _, i := range indexes {
			all = append(all, classified[i].Column)
			if classified[i].Unused {
				unused = append(unused, classified[i].Column)
			}
		}
		if len(unused) == 0 {
			continue
		}

		if sortedEqual(unused, all) {
			entries = append(entries, table+": [.*]")
			continue
		}
		entries = append(entries, table+": ["+strings.Join(unused, ", ")+"]")
	}

	return strings.Join(entries, ", "), classified, nil
}

// sortedEqual compares two name sets after sorting copies of each.
func sortedEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	left := append([]string(nil), a...)
	right := append([]string(nil), b...)
	sort.Strings(left)
	sort.Strings(right)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}
