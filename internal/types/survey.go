// Package types provides type definitions for structured data used throughout the survey-generator system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "strings"

// QuestionType identifies how a question is answered.
type QuestionType string

// Supported question types. Unknown type tags normalize to open_text.
const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionOpenText       QuestionType = "open_text"
	QuestionRating         QuestionType = "rating"
	QuestionNPS            QuestionType = "nps"
)

// NormalizeQuestionType maps a raw type tag to a supported QuestionType.
// Common aliases from model output are accepted; anything unrecognized
// becomes open_text so a bad tag never sinks an otherwise valid question.
func NormalizeQuestionType(raw string) QuestionType {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "-", "_"))) {
	case "single_choice", "single", "radio", "choice":
		return QuestionSingleChoice
	case "multiple_choice", "multi", "multiple", "checkbox", "multi_select":
		return QuestionMultipleChoice
	case "rating", "scale", "likert":
		return QuestionRating
	case "nps", "net_promoter_score":
		return QuestionNPS
	default:
		return QuestionOpenText
	}
}

// Confidence reports how faithfully structure was recovered from raw model text.
type Confidence string

// Confidence levels, ordered from full trust to best-effort salvage.
const (
	ConfidenceExact    Confidence = "exact"
	ConfidenceRepaired Confidence = "repaired"
	ConfidenceSalvaged Confidence = "salvaged"
)

// SurveyDocument is the structured artifact produced by the pipeline.
type SurveyDocument struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

// Section groups an ordered run of questions under a shared heading.
type Section struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// Question is a single survey item. ID is unique within the document, not globally.
type Question struct {
	ID       string       `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Required bool         `json:"required"`
}

// QuestionCount returns the total number of questions across all sections.
func (d *SurveyDocument) QuestionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

// AllQuestions returns every question in document order.
func (d *SurveyDocument) AllQuestions() []Question {
	out := make([]Question, 0, d.QuestionCount())
	for _, s := range d.Sections {
		out = append(out, s.Questions...)
	}
	return out
}
