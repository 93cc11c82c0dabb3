package contextpack

import "strings"

// trimToTokens shortens content to approximately maxTokens, preferring
// to cut at line boundaries over hard truncation. The result is always
// within maxTokens as measured by the counter.
func trimToTokens(content string, maxTokens int, counter TokenCounter) string {
	if maxTokens <= 0 {
		return ""
	}
	if counter.Count(content) <= maxTokens {
		return content
	}

	// Accumulate whole lines while they fit
	lines := strings.Split(content, "\n")
	var b strings.Builder
	used := 0
	for _, line := range lines {
		lineTokens := counter.Count(line) + 1 // Newline overhead
		if used+lineTokens > maxTokens {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		used += lineTokens
	}

	if b.Len() > 0 {
		return b.String()
	}

	// A single line larger than the ceiling falls back to hard
	// truncation on whitespace
	fields := strings.Fields(content)
	var hard strings.Builder
	for _, f := range fields {
		candidate := hard.String()
		if candidate != "" {
			candidate += " "
		}
		candidate += f
		if counter.Count(candidate) > maxTokens {
			break
		}
		if hard.Len() > 0 {
			hard.WriteString(" ")
		}
		hard.WriteString(f)
	}
	return hard.String()
}
