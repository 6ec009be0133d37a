package analyzer

import "strings"

// CountHidden counts boolean-true "Hidden" fields in an arbitrary decoded
// JSON document. A subtree rooted at an object whose "Name" starts with a
// synthetic date-table marker is excluded entirely; the exclusion propagates
// downward only and never affects sibling branches. Returns 0 for empty or
// absent input.
func CountHidden(doc any) int {
	return countHidden(doc, false)
}

func countHidden(node any, suppressed bool) int {
	switch value := node.(type) {
	case map[string]any:
		// The Name check must precede the Hidden check so the result does
		// not depend on sibling key order.
		if !suppressed {
			if name, ok := value["Name"].(string); ok && hasSyntheticPrefix(name) {
				suppressed = true
			}
		}

		count := 0
		if !suppressed {
			if hidden, ok := value["Hidden"].(bool); ok && hidden {
				count++
			}
		}
		for _, child := range value {
			count += countHidden(child, suppressed)
		}
		return count

	case []any:
		count := 0
		for _, item := range value {
			count += countHidden(item, suppressed)
		}
		return count

	default:
		return 0
	}
}

func hasSyntheticPrefix(name string) bool {
	for _, marker := range syntheticTableMarkers {
		if strings.HasPrefix(name, marker) {
			return true
		}
	}
	return false
}
