// Package llm - util.go provides shared utilities for LLM response processing.
package llm

import "strings"

// CleanJSONBlock removes markdown code block wrappers from JSON responses.
// Models wrap JSON in ```json ... ``` fences even when told not to, and the
// opening fence sometimes carries other language tags or none at all.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	if first, rest, ok := strings.Cut(body, "\n"); ok {
		// An opening-fence line holding only a language tag is dropped;
		// anything with spaces or braces is already payload.
		tag := strings.TrimSpace(first)
		if tag == "" || (len(tag) < 20 && !strings.ContainsAny(tag, " {")) {
			body = rest
		}
	} else {
		body = strings.TrimPrefix(body, "json")
	}

	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
