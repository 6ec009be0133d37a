package analyzer

import (
	"strings"

	"github.com/nokodsec/pbanalyzer/internal/models"
)

const (
	unknownTable  = "UnknownTable"
	unknownColumn = "UnknownColumn"
)

// Power BI auto-generates calendar helper tables with these name markers.
// They are not user data and must never surface in results.
var syntheticTableMarkers = []string{"DateTableTemplate", "LocalDateTable"}

// ExtractColumns walks a conceptual schema document and returns one
// ColumnRef per (entity, property) pair in encounter order, with synthetic
// date tables filtered out.
//
// A schema entry carrying an "error" field marks a partial response; the
// remaining entries are not processed.
func ExtractColumns(schemaDoc any) []models.ColumnRef {
	refs := make([]models.ColumnRef, 0)

	for _, entry := range asSlice(asMap(schemaDoc)["schemas"]) {
		entryMap := asMap(entry)
		if _, degraded := entryMap["error"]; degraded {
			break
		}

		for _, entity := range asSlice(asMap(entryMap["schema"])["Entities"]) {
			entityMap := asMap(entity)
			tableName := stringOr(entityMap["Name"], unknownTable)

			for _, property := range asSlice(entityMap["Properties"]) {
				columnName := stringOr(asMap(property)["Name"], unknownColumn)
				refs = append(refs, models.ColumnRef{Table: tableName, Column: columnName})
			}
		}
	}

	filtered := make([]models.ColumnRef, 0, len(refs))
	for _, ref := range refs {
		if isSyntheticTable(ref.Table) {
			continue
		}
		filtered = append(filtered, ref)
	}
	return filtered
}

func isSyntheticTable(tableName string) bool {
	for _, marker := range syntheticTableMarkers {
		if strings.Contains(tableName, marker) {
			return true
		}
	}
	return false
}

func asMap(value any) map[string]any {
	m, _ := value.(map[string]any)
	return m
}

func asSlice(value any) []any {
	s, _ := value.([]any)
	return s
}

func stringOr(value any, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}
