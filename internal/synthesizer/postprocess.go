package synthesizer

import "strings"

// countCoverage tallies answer lines per documentation label.
func countCoverage(answer string) Coverage {
	var c Coverage
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.Contains(trimmed, "[DOCUMENTED]"), strings.Contains(trimmed, "[DOCUMENTED CODE]"):
			c.Documented++
		case strings.Contains(trimmed, "[CONCEPTUAL]"), strings.Contains(trimmed, "[CONCEPTUAL CODE]"):
			c.Conceptual++
		case strings.Contains(trimmed, "[UNCERTAIN]"):
			c.Uncertain++
		}
	}
	return c
}

// extractSources returns the URLs cited in the answer's "### Sources"
// section, restricted to the URLs of the retrieved chunks. Order follows
// the answer; duplicates are dropped.
func extractSources(answer string, retrieved []string) []string {
	allowed := make(map[string]bool, len(retrieved))
	for _, url := range retrieved {
		allowed[url] = true
	}

	sources := make([]string, 0, len(retrieved))
	seen := make(map[string]bool)
	inSources := false
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "### Sources":
			inSources = true
		case inSources && strings.HasPrefix(trimmed, "### "):
			inSources = false
		case inSources && strings.HasPrefix(trimmed, "- "):
			cited := strings.TrimSpace(trimmed[2:])
			// a citation may carry a description after the URL
			for _, url := range retrieved {
				if strings.Contains(cited, url) && !seen[url] {
					seen[url] = true
					sources = append(sources, url)
				}
			}
		}
	}
	return sources
}
