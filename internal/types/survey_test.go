//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeQuestionType(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want QuestionType
	}{
		{name: "canonical single choice", raw: "single_choice", want: QuestionSingleChoice},
		{name: "hyphenated alias", raw: "single-choice", want: QuestionSingleChoice},
		{name: "radio alias", raw: "radio", want: QuestionSingleChoice},
		{name: "multiple choice", raw: "multiple_choice", want: QuestionMultipleChoice},
		{name: "checkbox alias", raw: "checkbox", want: QuestionMultipleChoice},
		{name: "rating", raw: "rating", want: QuestionRating},
		{name: "likert alias", raw: "Likert", want: QuestionRating},
		{name: "nps", raw: "nps", want: QuestionNPS},
		{name: "open text", raw: "open_text", want: QuestionOpenText},
		{name: "unknown falls back to open text", raw: "essay", want: QuestionOpenText},
		{name: "empty falls back to open text", raw: "", want: QuestionOpenText},
		{name: "whitespace and case tolerated", raw: "  Multi-Select ", want: QuestionMultipleChoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuestionType(tt.raw))
		})
	}
}

func TestSurveyDocument_QuestionCount(t *testing.T) {
	doc := SurveyDocument{
		Title: "Coffee Machine Pricing",
		Sections: []Section{
			{
				Title: "Usage",
				Questions: []Question{
					{ID: "q1", Text: "How often do you buy coffee?", Type: QuestionSingleChoice},
					{ID: "q2", Text: "Which brands do you consider?", Type: QuestionMultipleChoice},
				},
			},
			{
				Title: "Pricing",
				Questions: []Question{
					{ID: "q3", Text: "What would you expect to pay?", Type: QuestionOpenText},
				},
			},
		},
	}

	assert.Equal(t, 3, doc.QuestionCount())

	all := doc.AllQuestions()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"q1", "q2", "q3"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestSurveyDocument_EmptyDocument(t *testing.T) {
	var doc SurveyDocument
	assert.Equal(t, 0, doc.QuestionCount())
	assert.Empty(t, doc.AllQuestions())
}

func TestSurveyDocument_JSONRoundTrip(t *testing.T) {
	doc := SurveyDocument{
		Title:       "Employee Satisfaction",
		Description: "Quarterly pulse survey",
		Sections: []Section{
			{
				Title: "Engagement",
				Questions: []Question{
					{ID: "q1", Text: "How satisfied are you?", Type: QuestionRating, Required: true},
					{ID: "q2", Text: "Pick your top perks", Type: QuestionMultipleChoice, Options: []string{"Remote work", "Learning budget"}},
				},
			},
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var got SurveyDocument
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, doc, got)
}
