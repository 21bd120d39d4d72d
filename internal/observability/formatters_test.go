package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nvasquez/survey-generator/internal/scoring"
	"github.com/nvasquez/survey-generator/internal/types"
)

func TestPrintRFQProfile(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	profile := &types.RFQProfile{
		Topic:               "checkout abandonment",
		Audience:            "recent online shoppers",
		Objectives:          []string{"Why do carts get abandoned?", "Which payment options are missing?"},
		Constraints:         []string{"max 10 minutes"},
		TargetQuestionCount: 12,
		Tone:                "conversational",
	}

	p.PrintRFQProfile(profile)
	output := buf.String()

	assert.Contains(t, output, "PARSED RFQ PROFILE")
	assert.Contains(t, output, "checkout abandonment")
	assert.Contains(t, output, "recent online shoppers")
	assert.Contains(t, output, "12 questions")
	assert.Contains(t, output, "carts get abandoned")
	assert.Contains(t, output, "max 10 minutes")
}

func TestPrintRFQProfile_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintRFQProfile(nil)

	assert.Empty(t, buf.String())
}

func TestPrintMatches(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	matches := []types.Match{
		{
			Example:    &types.GoldenExample{Survey: types.SurveyDocument{Title: "Churn Drivers"}},
			Similarity: 0.912,
		},
		{
			Example:    &types.GoldenExample{Survey: types.SurveyDocument{Title: "Feature Prioritization"}},
			Similarity: 0.734,
		},
	}

	p.PrintMatches(matches)
	output := buf.String()

	assert.Contains(t, output, "GOLDEN EXAMPLE MATCHES")
	assert.Contains(t, output, "Churn Drivers")
	assert.Contains(t, output, "0.912")
	assert.Contains(t, output, "Feature Prioritization")
}

func TestPrintMatches_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintMatches(nil)

	assert.Empty(t, buf.String())
}

func TestPrintPlan(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	plan := &types.MethodologyPlan{
		Approach:        "satisfaction tracking",
		Methodologies:   []string{"csat", "nps"},
		TargetQuestions: 8,
		Sections: []types.SectionPlan{
			{Title: "Overall Satisfaction", Focus: "first impressions", QuestionCount: 3},
			{Title: "Loyalty", QuestionCount: 5},
		},
	}

	p.PrintPlan(plan)
	output := buf.String()

	assert.Contains(t, output, "METHODOLOGY PLAN")
	assert.Contains(t, output, "satisfaction tracking")
	assert.Contains(t, output, "csat, nps")
	assert.Contains(t, output, "8 questions")
	assert.Contains(t, output, "Overall Satisfaction")
	assert.Contains(t, output, "first impressions")
}

func TestPrintPlan_Empty(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintPlan(nil)
	p.PrintPlan(&types.MethodologyPlan{})

	assert.Empty(t, buf.String())
}

func TestPrintSurvey(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	doc := &types.SurveyDocument{
		Title: "Onboarding Experience",
		Sections: []types.Section{
			{
				Title: "First Week",
				Questions: []types.Question{
					{ID: "q1", Text: "How clear were your first-week goals?", Type: types.QuestionRating},
					{ID: "q2", Text: "What slowed you down the most?", Type: types.QuestionOpenText},
				},
			},
		},
	}

	p.PrintSurvey(doc, types.ConfidenceRepaired, "code_fence")
	output := buf.String()

	assert.Contains(t, output, "GENERATED SURVEY")
	assert.Contains(t, output, "Onboarding Experience")
	assert.Contains(t, output, "2 in 1 sections")
	assert.Contains(t, output, "repaired")
	assert.Contains(t, output, "code_fence")
	assert.Contains(t, output, "First Week")
	assert.Contains(t, output, "first-week goals")
}

func TestPrintSurvey_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintSurvey(nil, "", "")

	assert.Empty(t, buf.String())
}

func TestPrintScore(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	score := &scoring.CompositeScore{
		Composite:      0.81,
		Method:         scoring.MethodFallback,
		Degraded:       true,
		PenaltyApplied: true,
		Pillars: []scoring.PillarScore{
			{Pillar: scoring.PillarContentValidity, Score: 0.9, Weight: 0.3},
			{Pillar: scoring.PillarMethodologicalRigor, Score: 0.7, Weight: 0.25},
		},
	}

	p.PrintScore(score)
	output := buf.String()

	assert.Contains(t, output, "SURVEY QUALITY SCORE")
	assert.Contains(t, output, "0.81")
	assert.Contains(t, output, "fallback (degraded)")
	assert.Contains(t, output, "salvaged extraction")
	assert.Contains(t, output, string(scoring.PillarContentValidity))
}

func TestPrintScore_Nil(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintScore(nil)

	assert.Empty(t, buf.String())
}
