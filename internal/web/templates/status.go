// Package templates renders the HTML pages of the import UI.
//
// Components are written in .templ files; run `templ generate` after
// editing them.
package templates

import "sort"

// refreshSeconds is how often a running import's page reloads itself.
const refreshSeconds = 2

func statusLabel(status string) string {
	switch status {
	case "pending":
		return "Queued"
	case "processing":
		return "Processing"
	case "completed":
		return "Completed"
	case "completed_with_errors":
		return "Completed with errors"
	case "failed":
		return "Failed"
	}
	return status
}

func summaryKeys(summary map[string]int) []string {
	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
