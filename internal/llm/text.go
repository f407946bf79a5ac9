package llm

import "strings"

// StripCodeFences removes a surrounding ```/```json fence if present.
// Models asked for JSON often wrap it in a markdown fence anyway.
func StripCodeFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		// Single-line fence: ```json {...}```
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimPrefix(content, "json")
		return strings.TrimSpace(strings.TrimSuffix(content, "```"))
	}

	// Remove first line (```json) and last line (```)
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	} else {
		lines[end-1] = strings.TrimSuffix(strings.TrimSpace(lines[end-1]), "```")
	}
	return strings.TrimSpace(strings.Join(lines[1:end], "\n"))
}
