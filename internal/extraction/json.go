package extraction

import (
	"encoding/json"
	"strings"

	"github.com/nvasquez/survey-generator/internal/llm"
)

// OutermostObject locates the outermost {...} span in text by brace counting
// that ignores braces inside string literals and honors escape sequences.
// The second return value reports whether the span closed; an unbalanced
// span runs to the end of the text and needs repair before parsing.
func OutermostObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return text[start:], false
}

// RepairTruncation closes an unbalanced JSON object span: an unterminated
// string gets its closing quote, dangling commas are dropped, a dangling
// colon gets a null value, and open containers are closed in reverse order.
func RepairTruncation(span string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(span); i++ {
		c := span[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	repaired := span
	if inString {
		repaired += `"`
	}

	for {
		trimmed := strings.TrimRight(repaired, " \t\r\n")
		if strings.HasSuffix(trimmed, ",") {
			repaired = strings.TrimSuffix(trimmed, ",")
			continue
		}
		if strings.HasSuffix(trimmed, ":") {
			repaired = trimmed + " null"
		}
		break
	}

	for i := len(stack) - 1; i >= 0; i-- {
		switch stack[i] {
		case '{':
			repaired += "}"
		case '[':
			repaired += "]"
		}
	}
	return repaired
}

// DecodeLenient unmarshals model output into v, tolerating markdown fences,
// trailing prose, and truncation. It tries the cleaned text verbatim, then
// the outermost object span, then the repaired span.
func DecodeLenient(raw string, v any) error {
	cleaned := llm.CleanJSONBlock(raw)
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	span, balanced := OutermostObject(cleaned)
	if span == "" {
		return &Failure{Message: "no JSON object found in response"}
	}
	if balanced {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		}
	}

	repaired := RepairTruncation(span)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return &Failure{Message: "response is not decodable JSON", Cause: err}
	}
	return nil
}

// unquoteJSONString decodes a JSON string literal body (the text between the
// quotes, escapes intact) into its value. Undecodable input returns as-is.
func unquoteJSONString(body string) string {
	var s string
	if err := json.Unmarshal([]byte(`"`+body+`"`), &s); err != nil {
		return body
	}
	return s
}
