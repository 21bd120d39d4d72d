package extraction

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nvasquez/survey-generator/internal/types"
)

// Fragment patterns for strategy 3. A usable fragment is an object-like span
// carrying both an id-like and a text-like field, in either order, with any
// scalar fields between them. Closing punctuation is not required, so
// fragments cut off mid-object still match.
var (
	reIDThenText = regexp.MustCompile(
		`\{[^{}]*?"(?:question_)?id"\s*:\s*(?:"((?:[^"\\]|\\.)*)"|(\d+))[^{}]*?"(?:text|question)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reTextThenID = regexp.MustCompile(
		`\{[^{}]*?"(?:text|question)"\s*:\s*"((?:[^"\\]|\\.)*)"[^{}]*?"(?:question_)?id"\s*:\s*(?:"((?:[^"\\]|\\.)*)"|(\d+))`)
	reTypeField  = regexp.MustCompile(`"type"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reTitleField = regexp.MustCompile(`"title"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	reTextField  = regexp.MustCompile(`"(?:text|question)"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

type fragment struct {
	start int
	end   int
	id    string
	text  string
	qtype string
}

// patternRecovery scans for question-shaped fragments and rebuilds a
// best-effort document from whatever matched, in source order.
func patternRecovery(raw string) *types.SurveyDocument {
	frags := collectFragments(raw)
	if len(frags) == 0 {
		return nil
	}

	wire := wireDocument{Title: recoveredTitle(raw)}
	section := wireSection{}
	for _, f := range frags {
		section.Questions = append(section.Questions, wireQuestion{
			ID:   flexString(f.id),
			Text: f.text,
			Type: f.qtype,
		})
	}
	wire.Sections = []wireSection{section}
	return normalize(&wire)
}

func collectFragments(raw string) []fragment {
	var frags []fragment

	for _, m := range reIDThenText.FindAllStringSubmatchIndex(raw, -1) {
		frags = append(frags, fragment{
			start: m[0],
			end:   m[1],
			id:    submatch(raw, m, 1, 2),
			text:  unquoteJSONString(group(raw, m, 3)),
		})
	}
	for _, m := range reTextThenID.FindAllStringSubmatchIndex(raw, -1) {
		frags = append(frags, fragment{
			start: m[0],
			end:   m[1],
			id:    submatch(raw, m, 2, 3),
			text:  unquoteJSONString(group(raw, m, 1)),
		})
	}

	sort.Slice(frags, func(i, j int) bool {
		if frags[i].start != frags[j].start {
			return frags[i].start < frags[j].start
		}
		return frags[i].end < frags[j].end
	})

	// Both patterns can fire inside one object; keep the first span and drop
	// anything overlapping it.
	kept := frags[:0]
	prevEnd := -1
	for _, f := range frags {
		if f.start < prevEnd {
			continue
		}
		f.qtype = fragmentType(raw, f)
		kept = append(kept, f)
		prevEnd = f.end
	}
	return kept
}

// fragmentType looks for a type tag inside the fragment's window, which runs
// from the match to the next object boundary or a fixed cap.
func fragmentType(raw string, f fragment) string {
	limit := f.end + 200
	if limit > len(raw) {
		limit = len(raw)
	}
	if i := strings.IndexAny(raw[f.end:limit], "{}"); i >= 0 {
		limit = f.end + i
	}
	window := raw[f.start:limit]
	if m := reTypeField.FindStringSubmatch(window); m != nil {
		return unquoteJSONString(m[1])
	}
	return ""
}

func recoveredTitle(raw string) string {
	if m := reTitleField.FindStringSubmatch(raw); m != nil {
		return unquoteJSONString(m[1])
	}
	return ""
}

// group returns the capture at index i, or empty when the group did not match.
func group(raw string, m []int, i int) string {
	if 2*i+1 >= len(m) || m[2*i] < 0 {
		return ""
	}
	return raw[m[2*i]:m[2*i+1]]
}

// submatch returns whichever of two alternated captures matched.
func submatch(raw string, m []int, stringGroup, numberGroup int) string {
	if s := group(raw, m, stringGroup); s != "" {
		return unquoteJSONString(s)
	}
	return group(raw, m, numberGroup)
}

// textSalvage is the last resort: every free-standing text-labeled string
// value becomes an open-text question in a single section, source order
// preserved.
func textSalvage(raw string) *types.SurveyDocument {
	matches := reTextField.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	wire := wireDocument{Title: recoveredTitle(raw)}
	section := wireSection{}
	for _, m := range matches {
		section.Questions = append(section.Questions, wireQuestion{
			Text: unquoteJSONString(m[1]),
		})
	}
	wire.Sections = []wireSection{section}
	return normalize(&wire)
}
