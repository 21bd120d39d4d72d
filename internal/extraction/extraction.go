// Package extraction recovers a structured survey document from raw model
// output. Model responses are expected to be JSON but frequently arrive
// truncated, wrapped in prose, or with broken syntax, so extraction runs an
// ordered cascade of strategies, each a pure function of the text, composed
// by first-success. Later strategies trade precision for recall and tag
// their output with a lower confidence so scoring can discount it.
package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvasquez/survey-generator/internal/llm"
	"github.com/nvasquez/survey-generator/internal/types"
)

// Strategy names, recorded on results for auditing.
const (
	StrategyDirect         = "direct"
	StrategyBracketBounded = "bracket_bounded"
	StrategyPatternRecover = "pattern_recovery"
	StrategyTextSalvage    = "text_salvage"
)

// Result is an extracted document plus the cascade's self-reported trust in
// how faithfully it recovered structure.
type Result struct {
	Document   *types.SurveyDocument
	Confidence types.Confidence
	Strategy   string
}

type strategy struct {
	name       string
	confidence types.Confidence
	run        func(raw string) *types.SurveyDocument
}

var cascade = []strategy{
	{name: StrategyDirect, confidence: types.ConfidenceExact, run: directParse},
	{name: StrategyBracketBounded, confidence: types.ConfidenceRepaired, run: bracketBoundedParse},
	{name: StrategyPatternRecover, confidence: types.ConfidenceSalvaged, run: patternRecovery},
	{name: StrategyTextSalvage, confidence: types.ConfidenceSalvaged, run: textSalvage},
}

// Extract runs the cascade over raw model output. Every returned document
// satisfies the minimum invariant: at least one section, at least one
// question per section, no empty question text. Extraction fails only when
// the final salvage strategy finds zero question fragments.
func Extract(raw string) (*Result, error) {
	for _, s := range cascade {
		doc := s.run(raw)
		if doc == nil || !meetsMinimum(doc) {
			continue
		}
		return &Result{Document: doc, Confidence: s.confidence, Strategy: s.name}, nil
	}
	return nil, &Failure{Message: "no question content recovered by any strategy"}
}

func meetsMinimum(doc *types.SurveyDocument) bool {
	if doc == nil || len(doc.Sections) == 0 {
		return false
	}
	for _, s := range doc.Sections {
		if len(s.Questions) == 0 {
			return false
		}
		for _, q := range s.Questions {
			if strings.TrimSpace(q.Text) == "" {
				return false
			}
		}
	}
	return true
}

// directParse requires the whole cleaned response to be valid JSON.
func directParse(raw string) *types.SurveyDocument {
	cleaned := llm.CleanJSONBlock(raw)
	var wire wireDocument
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return nil
	}
	return normalize(&wire)
}

// bracketBoundedParse retries on the outermost {...} span, repairing a
// truncated tail when the span never closes.
func bracketBoundedParse(raw string) *types.SurveyDocument {
	cleaned := llm.CleanJSONBlock(raw)
	span, balanced := OutermostObject(cleaned)
	if span == "" {
		return nil
	}

	var wire wireDocument
	if balanced {
		if err := json.Unmarshal([]byte(span), &wire); err == nil {
			return normalize(&wire)
		}
	}
	if err := json.Unmarshal([]byte(RepairTruncation(span)), &wire); err != nil {
		return nil
	}
	return normalize(&wire)
}

// wireDocument is the tolerant decoding target for model JSON. Field aliases
// cover the shapes models actually emit rather than the one we asked for.
type wireDocument struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Survey      *wireDocument `json:"survey"`
	Sections    []wireSection `json:"sections"`
}

type wireSection struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Questions   []wireQuestion `json:"questions"`
}

type wireQuestion struct {
	ID         flexString  `json:"id"`
	QuestionID flexString  `json:"question_id"`
	Text       string      `json:"text"`
	Question   string      `json:"question"`
	Type       string      `json:"type"`
	Options    flexOptions `json:"options"`
	Required   bool        `json:"required"`
}

// flexString accepts string or numeric ids; models number questions both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// flexOptions accepts ["a","b"], [{"text":"a"},...], or a bare string.
// Unrecognized shapes decode to no options rather than failing the question.
type flexOptions []string

func (o *flexOptions) UnmarshalJSON(data []byte) error {
	var plain []string
	if err := json.Unmarshal(data, &plain); err == nil {
		*o = plain
		return nil
	}

	var objs []struct {
		Text  string `json:"text"`
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &objs); err == nil {
		out := make([]string, 0, len(objs))
		for _, obj := range objs {
			switch {
			case obj.Text != "":
				out = append(out, obj.Text)
			case obj.Label != "":
				out = append(out, obj.Label)
			case obj.Value != "":
				out = append(out, obj.Value)
			}
		}
		*o = out
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*o = []string{single}
		return nil
	}

	*o = nil
	return nil
}

// normalize converts a wire document into the domain type: blank questions
// are dropped, empty sections pruned, types canonicalized, missing or
// duplicate ids reassigned. Returns nil when nothing usable remains.
func normalize(wire *wireDocument) *types.SurveyDocument {
	if wire == nil {
		return nil
	}
	if len(wire.Sections) == 0 && wire.Survey != nil {
		return normalize(wire.Survey)
	}

	doc := &types.SurveyDocument{
		Title:       strings.TrimSpace(wire.Title),
		Description: strings.TrimSpace(wire.Description),
	}

	seen := make(map[string]bool)
	nextSeq := 1
	nextID := func() string {
		for {
			cand := fmt.Sprintf("q%d", nextSeq)
			nextSeq++
			if !seen[cand] {
				return cand
			}
		}
	}

	for _, ws := range wire.Sections {
		sec := types.Section{
			Title:       strings.TrimSpace(ws.Title),
			Description: strings.TrimSpace(ws.Description),
		}
		for _, wq := range ws.Questions {
			text := strings.TrimSpace(wq.Text)
			if text == "" {
				text = strings.TrimSpace(wq.Question)
			}
			if text == "" {
				continue
			}

			id := strings.TrimSpace(string(wq.ID))
			if id == "" {
				id = strings.TrimSpace(string(wq.QuestionID))
			}
			if id == "" || seen[id] {
				id = nextID()
			}
			seen[id] = true

			options := make([]string, 0, len(wq.Options))
			for _, opt := range wq.Options {
				if trimmed := strings.TrimSpace(opt); trimmed != "" {
					options = append(options, trimmed)
				}
			}
			if len(options) == 0 {
				options = nil
			}

			sec.Questions = append(sec.Questions, types.Question{
				ID:       id,
				Text:     text,
				Type:     types.NormalizeQuestionType(wq.Type),
				Options:  options,
				Required: wq.Required,
			})
		}
		if len(sec.Questions) == 0 {
			continue
		}
		if sec.Title == "" {
			sec.Title = fmt.Sprintf("Section %d", len(doc.Sections)+1)
		}
		doc.Sections = append(doc.Sections, sec)
	}

	if len(doc.Sections) == 0 {
		return nil
	}
	if doc.Title == "" {
		doc.Title = "Untitled Survey"
	}
	return doc
}
