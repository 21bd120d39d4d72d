package intake

import (
	"regexp"
	"strings"
)

var (
	collapseSpaces = regexp.MustCompile(`\s+`)
	blankRuns      = regexp.MustCompile(`\n\n\n+`)
	numberedItem   = regexp.MustCompile(`^\d{1,3}[.)] `)
)

// Clean normalizes RFQ text while keeping its structure: headings and bullet
// lists survive, runs of spaces collapse, blank-line runs shrink to a single
// separator line, and line endings become LF.
func Clean(content string) string {
	if content == "" {
		return ""
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, cleanLine(line))
	}

	result := blankRuns.ReplaceAllString(strings.Join(cleaned, "\n"), "\n\n")
	return strings.TrimSpace(result)
}

func cleanLine(line string) string {
	if strings.TrimSpace(line) == "" {
		return ""
	}

	// Headings lose their indentation; list items keep theirs. Neither gets
	// internal whitespace collapsed, so bulleted and numbered requirement
	// lists stay readable.
	trimmed := strings.TrimLeft(line, " \t")
	if strings.HasPrefix(trimmed, "#") {
		return strings.TrimRight(trimmed, " \t")
	}
	if isListItem(trimmed) {
		indent := len(line) - len(trimmed)
		return strings.Repeat(" ", indent) + strings.TrimRight(trimmed, " \t")
	}

	indent := len(line) - len(trimmed)
	content := collapseSpaces.ReplaceAllString(strings.TrimSpace(line), " ")
	if indent > 0 {
		return strings.Repeat(" ", indent) + content
	}
	return content
}

func isListItem(trimmed string) bool {
	return strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
		strings.HasPrefix(trimmed, "• ") || strings.HasPrefix(trimmed, "· ") ||
		numberedItem.MatchString(trimmed)
}
