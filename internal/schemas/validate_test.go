package schemas

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvasquez/survey-generator/internal/types"
)

const validSurveyJSON = `{
  "title": "Remote Work Pulse",
  "description": "Quarterly check-in on remote work satisfaction.",
  "sections": [
    {
      "title": "Environment",
      "questions": [
        {"id": "q1", "text": "How satisfied are you with your home office setup?", "type": "rating", "required": true},
        {"id": "q2", "text": "Which equipment has the company provided?", "type": "multiple_choice", "options": ["Laptop", "Monitor", "Chair"], "required": false}
      ]
    }
  ]
}`

func TestValidateSurveyJSON_Valid(t *testing.T) {
	assert.NoError(t, ValidateSurveyJSON(validSurveyJSON))
}

func TestValidateSurveyJSON_Violations(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		wantField string
	}{
		{
			name:      "missing title",
			json:      `{"sections": [{"title": "S", "questions": [{"id": "q1", "text": "Why?", "type": "open_text"}]}]}`,
			wantField: "(root)",
		},
		{
			name:      "empty sections",
			json:      `{"title": "T", "sections": []}`,
			wantField: "sections",
		},
		{
			name:      "section without questions",
			json:      `{"title": "T", "sections": [{"title": "S", "questions": []}]}`,
			wantField: "sections.0.questions",
		},
		{
			name:      "unknown question type",
			json:      `{"title": "T", "sections": [{"title": "S", "questions": [{"id": "q1", "text": "Why?", "type": "matrix"}]}]}`,
			wantField: "sections.0.questions.0.type",
		},
		{
			name:      "blank question text",
			json:      `{"title": "T", "sections": [{"title": "S", "questions": [{"id": "q1", "text": "", "type": "open_text"}]}]}`,
			wantField: "sections.0.questions.0.text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSurveyJSON(tt.json)
			require.Error(t, err)

			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type, got %T", err)
			require.NotEmpty(t, validationErr.Errors)

			fields := make([]string, 0, len(validationErr.Errors))
			for _, fe := range validationErr.Errors {
				fields = append(fields, fe.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidateSurveyDocument(t *testing.T) {
	doc := &types.SurveyDocument{
		Title: "Onboarding Feedback",
		Sections: []types.Section{
			{
				Title: "General",
				Questions: []types.Question{
					{ID: "q1", Text: "How was your first week?", Type: types.QuestionOpenText},
				},
			},
		},
	}
	assert.NoError(t, ValidateSurveyDocument(doc))

	doc.Title = ""
	err := ValidateSurveyDocument(doc)
	require.Error(t, err)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestValidateGoldenExampleJSON(t *testing.T) {
	valid := `{
  "rfq_text": "We need a survey measuring satisfaction with our mobile banking app among customers aged 25-45.",
  "survey": ` + validSurveyJSON + `
}`
	assert.NoError(t, ValidateGoldenExampleJSON(valid))

	tooShort := `{"rfq_text": "short", "survey": ` + validSurveyJSON + `}`
	err := ValidateGoldenExampleJSON(tooShort)
	require.Error(t, err)
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	badSurvey := `{"rfq_text": "We need a survey measuring satisfaction with our mobile banking app.", "survey": {"title": "T", "sections": []}}`
	err = ValidateGoldenExampleJSON(badSurvey)
	require.Error(t, err)
	require.ErrorAs(t, err, &validationErr)
}

func TestValidateGoldenExampleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "example.json")
	content := `{"rfq_text": "Survey on developer tooling satisfaction across platform engineering teams.", "survey": ` + validSurveyJSON + `}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	assert.NoError(t, ValidateGoldenExampleFile(path))

	err := ValidateGoldenExampleFile(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestValidateSurveyJSON_Malformed(t *testing.T) {
	err := ValidateSurveyJSON("{ not json }")
	require.Error(t, err)
}
