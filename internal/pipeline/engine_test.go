package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/audit"
	"github.com/nvasquez/survey-generator/internal/embedding"
	"github.com/nvasquez/survey-generator/internal/extraction"
	"github.com/nvasquez/survey-generator/internal/llm"
	"github.com/nvasquez/survey-generator/internal/matching"
	"github.com/nvasquez/survey-generator/internal/schemas"
	"github.com/nvasquez/survey-generator/internal/scoring"
	"github.com/nvasquez/survey-generator/internal/types"
)

const fixtureRFQ = `Developer satisfaction survey for our internal build platform.
Find out whether engineers would recommend the platform to a new team.`

const fixtureProfileJSON = `{
  "topic": "developer satisfaction with the internal build platform",
  "audience": "software engineers",
  "objectives": [
    "Measure satisfaction with the current toolchain",
    "Learn whether engineers would recommend the platform"
  ],
  "target_question_count": 8,
  "tone": "neutral"
}`

// fixtureSurveyJSON passes schema validation and every structural rule in
// the default rule set: 3 sections, 8 questions, unique ids, all choice
// questions with distinct options, at least one required question.
const fixtureSurveyJSON = `{
  "title": "Build Platform Satisfaction Survey",
  "description": "Help us improve the internal build platform.",
  "sections": [
    {
      "title": "Toolchain Satisfaction",
      "questions": [
        {"id": "q1", "text": "How satisfied are you with the build platform overall?", "type": "rating", "required": true},
        {"id": "q2", "text": "Which parts of the toolchain do you use every week?", "type": "multiple_choice", "options": ["Build runner", "Artifact cache", "Test sharding", "Release tooling"], "required": true},
        {"id": "q3", "text": "What slows you down most when building?", "type": "open_text", "required": false}
      ]
    },
    {
      "title": "Recommendation",
      "questions": [
        {"id": "q4", "text": "How likely are you to recommend the platform to a new team?", "type": "nps", "required": true},
        {"id": "q5", "text": "What is the main reason for your score?", "type": "open_text", "required": false},
        {"id": "q6", "text": "Which alternative would you pick if the platform disappeared?", "type": "single_choice", "options": ["Public CI vendor", "Self-hosted runners", "No strong preference"], "required": false}
      ]
    },
    {
      "title": "Respondent Profile",
      "questions": [
        {"id": "q7", "text": "How long have you worked here?", "type": "single_choice", "options": ["Under a year", "1-3 years", "Over 3 years"], "required": true},
        {"id": "q8", "text": "Which platforms do you ship to?", "type": "multiple_choice", "options": ["Backend services", "Mobile", "Web"], "required": false}
      ]
    }
  ]
}`

const fixtureEvaluatorJSON = `{
  "pillar_scores": {
    "content_validity": 0.9,
    "methodological_rigor": 0.85,
    "clarity_comprehensibility": 0.8,
    "structural_coherence": 0.75,
    "deployment_readiness": 0.95
  },
  "rule_results": [
    {"rule_id": "CV1", "passed": true, "note": "title names the research focus"},
    {"rule_id": "MR2", "passed": true, "note": "question ids are unique"}
  ],
  "summary": "Well structured instrument, ready to field."
}`

// Weighted sum of the pillar scores above:
// 0.25*0.9 + 0.25*0.85 + 0.20*0.8 + 0.15*0.75 + 0.15*0.95.
const fixtureEvaluatorComposite = 0.8525

// MockLLMClient implements llm.Client for testing.
type MockLLMClient struct {
	GenerateContentFunc func(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error)
	GenerateJSONFunc    func(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error)
	GetModelFunc        func(tier llm.ModelTier) string
}

func (m *MockLLMClient) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, prompt, tier)
	}
	return &llm.Response{Text: "", ModelID: "mock-model"}, nil
}

func (m *MockLLMClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error) {
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, tier)
	}
	return &llm.Response{Text: "{}", ModelID: "mock-model"}, nil
}

func (m *MockLLMClient) GetModel(tier llm.ModelTier) string {
	if m.GetModelFunc != nil {
		return m.GetModelFunc(tier)
	}
	return "mock-model"
}

func (m *MockLLMClient) Close() error { return nil }

type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// engineFixture wires an engine over in-memory collaborators. The three
// response hooks are routed by prompt markers unique to each template, so a
// test can swap one model behavior without touching the others.
type engineFixture struct {
	t        *testing.T
	store    *MemoryStore
	recorder *audit.MemoryLog
	index    *matching.MemoryIndex
	engine   *Engine
	events   []ProgressEvent

	embed            func(ctx context.Context, text string) ([]float32, error)
	parseResponse    func() (*llm.Response, error)
	generateResponse func() (*llm.Response, error)
	evaluateResponse func() (*llm.Response, error)
}

func newEngineFixture(t *testing.T, opts Options) *engineFixture {
	t.Helper()

	f := &engineFixture{
		t:        t,
		store:    NewMemoryStore(),
		recorder: audit.NewMemoryLog(),
		index:    matching.NewMemoryIndex(),
	}
	f.embed = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	f.parseResponse = func() (*llm.Response, error) {
		return &llm.Response{Text: fixtureProfileJSON, ModelID: "mock-lite", InputTokens: 80, OutputTokens: 40}, nil
	}
	f.generateResponse = func() (*llm.Response, error) {
		return &llm.Response{Text: fixtureSurveyJSON, ModelID: "mock-std", InputTokens: 600, OutputTokens: 400}, nil
	}
	f.evaluateResponse = func() (*llm.Response, error) {
		return &llm.Response{Text: fixtureEvaluatorJSON, ModelID: "mock-eval", InputTokens: 700, OutputTokens: 120}, nil
	}

	f.seedExample("Code Review Satisfaction", "Survey developers about code review satisfaction.", []float32{1, 0, 0})
	f.seedExample("CI Platform Loyalty", "Would build engineers recommend our CI platform?", []float32{0.9, 0.1, 0})
	f.seedExample("Grocery Shopping Habits", "Ask shoppers about weekly grocery trips.", []float32{0, 1, 0})

	client := &MockLLMClient{
		GenerateJSONFunc: func(ctx context.Context, prompt string, tier llm.ModelTier) (*llm.Response, error) {
			switch {
			case strings.Contains(prompt, "extract its research intent"):
				return f.parseResponse()
			case strings.Contains(prompt, "pillar_scores"):
				return f.evaluateResponse()
			case strings.Contains(prompt, "APPROVED METHODOLOGY PLAN"):
				return f.generateResponse()
			default:
				return nil, fmt.Errorf("no canned response for prompt %q", prompt[:min(len(prompt), 60)])
			}
		},
	}

	rules, err := scoring.LoadDefault()
	require.NoError(t, err)
	scorer := scoring.NewEngine(client, rules, f.recorder, nil)
	matcher := matching.NewMatcher(f.index, f.index, nil)

	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = 0.35
	}
	if opts.RetryBaseDelay == 0 {
		opts.RetryBaseDelay = time.Millisecond
	}
	userProgress := opts.OnProgress
	opts.OnProgress = func(ev ProgressEvent) {
		f.events = append(f.events, ev)
		if userProgress != nil {
			userProgress(ev)
		}
	}

	engine, err := NewEngine(Deps{
		Store:    f.store,
		LLM:      client,
		Embedder: embedderFunc(func(ctx context.Context, text string) ([]float32, error) { return f.embed(ctx, text) }),
		Matcher:  matcher,
		Scorer:   scorer,
		Recorder: f.recorder,
		Logger:   zap.NewNop(),
	}, opts)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *engineFixture) seedExample(title, rfq string, vector []float32) {
	f.index.Add(types.GoldenExample{
		RFQText:   rfq,
		Embedding: vector,
		Survey: types.SurveyDocument{
			Title: title,
			Sections: []types.Section{{
				Title: "Core",
				Questions: []types.Question{
					{ID: "q1", Text: "How often do you use it?", Type: types.QuestionRating, Required: true},
					{ID: "q2", Text: "What would you change first?", Type: types.QuestionOpenText},
				},
			}},
		},
	})
}

func (f *engineFixture) start(ctx context.Context) uuid.UUID {
	f.t.Helper()
	id, err := f.engine.Start(ctx, fixtureRFQ, "fixture.txt")
	require.NoError(f.t, err)
	return id
}

func (f *engineFixture) mustLoad(id uuid.UUID) *WorkflowRun {
	f.t.Helper()
	run, err := f.store.LoadRun(context.Background(), id)
	require.NoError(f.t, err)
	return run
}

func (f *engineFixture) transitions(id uuid.UUID) []Transition {
	f.t.Helper()
	listed, err := f.store.ListTransitions(context.Background(), id)
	require.NoError(f.t, err)
	return listed
}

func (f *engineFixture) auditRecords(id uuid.UUID) []audit.Record {
	f.t.Helper()
	records, err := f.recorder.ListByRun(context.Background(), id)
	require.NoError(f.t, err)
	return records
}

func (f *engineFixture) auditByPurpose(id uuid.UUID, purpose string) []audit.Record {
	var out []audit.Record
	for _, r := range f.auditRecords(id) {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

func TestEngine_HappyPathCompletes(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, StepCompleted, run.Step)
	assert.Equal(t, 100, run.MaxPercent)
	assert.Empty(t, run.FailureReason)

	require.NotNil(t, run.Artifacts.Profile)
	assert.Equal(t, "developer satisfaction with the internal build platform", run.Artifacts.Profile.Topic)
	assert.Equal(t, []float32{1, 0, 0}, run.Artifacts.Embedding)

	require.Len(t, run.Artifacts.Matches, 2)
	assert.Equal(t, "Code Review Satisfaction", run.Artifacts.Matches[0].Example.Survey.Title)
	assert.Equal(t, "CI Platform Loyalty", run.Artifacts.Matches[1].Example.Survey.Title)
	assert.InDelta(t, 1.0, run.Artifacts.Matches[0].Similarity, 1e-6)
	assert.InDelta(t, 0.9939, run.Artifacts.Matches[1].Similarity, 1e-3)
	for _, m := range run.Artifacts.Matches {
		assert.Nil(t, m.Example.Embedding, "stored matches must not carry embeddings")
	}

	require.NotNil(t, run.Artifacts.Plan)
	assert.Equal(t, 8, run.Artifacts.Plan.TargetQuestions)
	assert.Contains(t, run.Artifacts.PlanDraft, "Survey plan:")
	assert.Contains(t, run.Artifacts.GenerationPrompt, "### Example 1")
	assert.Contains(t, run.Artifacts.GenerationPrompt, "Code Review Satisfaction")

	assert.Equal(t, fixtureSurveyJSON, run.Artifacts.RawOutput)
	require.NotNil(t, run.Artifacts.Survey)
	assert.Equal(t, "Build Platform Satisfaction Survey", run.Artifacts.Survey.Title)
	assert.Equal(t, types.ConfidenceExact, run.Artifacts.Confidence)
	assert.Equal(t, extraction.StrategyDirect, run.Artifacts.Strategy)

	require.NotNil(t, run.Artifacts.Evaluation)
	assert.Len(t, run.Artifacts.Evaluation.PillarScores, 5)
	assert.Empty(t, run.Artifacts.DegradedReason)

	score := run.Artifacts.Score
	require.NotNil(t, score)
	assert.Equal(t, scoring.MethodEvaluator, score.Method)
	assert.InDelta(t, fixtureEvaluatorComposite, score.Composite, 1e-9)
	assert.False(t, score.Degraded)
	assert.False(t, score.PenaltyApplied)
	assert.Equal(t, types.ConfidenceExact, score.Confidence)
	assert.Equal(t, "Well structured instrument, ready to field.", score.Summary)

	status, err := f.engine.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Percent)
}

func TestEngine_HappyPathTransitionChain(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	trans := f.transitions(id)
	require.Len(t, trans, 14)

	wantTo := []Step{
		StepParsingRFQ,
		StepGeneratingEmbeddings,
		StepRFQParsed,
		StepMatchingGoldenExamples,
		StepPlanningMethodologies,
		StepHumanReview,
		StepPreparingGeneration,
		StepGeneratingQuestions,
		StepParsingOutput,
		StepValidationScoring,
		StepSingleCallEvaluator,
		StepPillarScoresAnalysis,
		StepFallbackEvaluation,
		StepCompleted,
	}
	for i, tr := range trans {
		assert.Equal(t, i+1, tr.Seq)
		assert.Equal(t, wantTo[i], tr.To)
		assert.Equal(t, Percentage(tr.To), tr.Percent)
		if i > 0 {
			assert.Equal(t, trans[i-1].To, tr.From, "transition %d breaks the chain", i+1)
			assert.GreaterOrEqual(t, tr.Percent, trans[i-1].Percent)
		}
	}

	assert.Equal(t, "run started", trans[0].Note)
	assert.Contains(t, trans[1].Note, "RFQ profile extracted")
	assert.Contains(t, trans[4].Note, "2 golden examples at or above 0.35 similarity")
	assert.Contains(t, trans[5].Note, "plan drafted: 8 questions in 3 sections")
	assert.Equal(t, "plan auto-approved", trans[6].Note)
	assert.Contains(t, trans[9].Note, "extracted via direct strategy, confidence exact")
	assert.Contains(t, trans[10].Note, "validated: 3 sections, 8 questions")
	assert.Contains(t, trans[12].Note, "via evaluator")

	last := trans[len(trans)-1]
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Percent)
	assert.Contains(t, last.Note, "not required")
	for _, tr := range trans[:len(trans)-1] {
		assert.Equal(t, StatusRunning, tr.Status)
	}
}

func TestEngine_HappyPathAuditTrail(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	records := f.auditRecords(id)
	require.Len(t, records, 5)

	assert.Equal(t, "parsing", records[0].Purpose)
	assert.Equal(t, "rfq_profile", records[0].SubPurpose)
	assert.Equal(t, "mock-lite", records[0].ModelID)
	assert.Contains(t, records[0].Prompt, "Input text:")
	assert.Contains(t, records[0].Prompt, fixtureRFQ)
	assert.Equal(t, fixtureProfileJSON, records[0].Response)
	assert.True(t, records[0].Success)
	assert.Equal(t, int32(80), records[0].InputTokens)

	assert.Equal(t, "embedding", records[1].Purpose)
	assert.Equal(t, "rfq", records[1].SubPurpose)
	assert.Equal(t, "embedding", records[1].ModelID)
	assert.Equal(t, fixtureRFQ, records[1].Prompt)
	assert.Equal(t, "3-dimensional vector", records[1].Response)

	assert.Equal(t, "human_review", records[2].Purpose)
	assert.Equal(t, types.DecisionApprove, records[2].SubPurpose)
	assert.Equal(t, "auto_approve", records[2].ModelID)
	assert.Contains(t, records[2].Prompt, "Survey plan:")

	assert.Equal(t, "generation", records[3].Purpose)
	assert.Equal(t, "questions", records[3].SubPurpose)
	assert.Equal(t, "mock-std", records[3].ModelID)
	assert.Contains(t, records[3].Prompt, "APPROVED METHODOLOGY PLAN")
	assert.Equal(t, fixtureSurveyJSON, records[3].Response)

	assert.Equal(t, "evaluation", records[4].Purpose)
	assert.Equal(t, "single_call", records[4].SubPurpose)
	assert.Equal(t, "mock-eval", records[4].ModelID)
	assert.Contains(t, records[4].Prompt, "pillar_scores")

	for i, r := range records {
		assert.Equal(t, i+1, r.Seq)
	}
	// The engine tracks its own records; the evaluator's are appended by the
	// scoring engine and do not move the pointer.
	assert.Equal(t, records[3].ID, run.LastAuditID)
}

func TestEngine_ProgressEventsAreMonotonic(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	require.NotEmpty(t, f.events)
	assert.Equal(t, "run started", f.events[0].Message)
	assert.Equal(t, Percentage(StepParsingRFQ), f.events[0].Percent)

	prev := 0
	for _, ev := range f.events {
		assert.Equal(t, id, ev.RunID)
		assert.True(t, KnownStep(ev.Step))
		assert.GreaterOrEqual(t, ev.Percent, prev, "progress went backwards at %q", ev.Message)
		prev = ev.Percent
	}

	last := f.events[len(f.events)-1]
	assert.Equal(t, 100, last.Percent)
	assert.Equal(t, StatusCompleted, last.Status)
}

func TestEngine_AdvanceReturnsExecutedStep(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	outcome, err := f.engine.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepParsingRFQ, outcome.Step)
	assert.Equal(t, StepGeneratingEmbeddings, outcome.Run.Step)

	outcome, err = f.engine.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepGeneratingEmbeddings, outcome.Step)
	assert.Equal(t, StepRFQParsed, outcome.Run.Step)
}

func TestEngine_RepairedOutputKeepsEvaluatorScore(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.generateResponse = func() (*llm.Response, error) {
		wrapped := "Here is the survey you asked for:\n" + fixtureSurveyJSON + "\nLet me know if anything needs adjusting."
		return &llm.Response{Text: wrapped, ModelID: "mock-std"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, extraction.StrategyBracketBounded, run.Artifacts.Strategy)
	assert.Equal(t, types.ConfidenceRepaired, run.Artifacts.Confidence)

	score := run.Artifacts.Score
	require.NotNil(t, score)
	assert.InDelta(t, fixtureEvaluatorComposite, score.Composite, 1e-9)
	assert.False(t, score.PenaltyApplied, "repaired output carries no salvage penalty")
}

func TestEngine_SalvagedOutputAppliesPenalty(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.generateResponse = func() (*llm.Response, error) {
		raw := `The model produced notes instead of JSON.
{"id": "q1", "text": "How satisfied are you with the build platform overall?"
{"id": "q2", "text": "Would you recommend the platform to a new team?"`
		return &llm.Response{Text: raw, ModelID: "mock-std"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, extraction.StrategyPatternRecover, run.Artifacts.Strategy)
	assert.Equal(t, types.ConfidenceSalvaged, run.Artifacts.Confidence)

	require.NotNil(t, run.Artifacts.Survey)
	assert.Equal(t, "Untitled Survey", run.Artifacts.Survey.Title)
	assert.Equal(t, 2, run.Artifacts.Survey.QuestionCount())

	score := run.Artifacts.Score
	require.NotNil(t, score)
	assert.Equal(t, scoring.MethodEvaluator, score.Method)
	assert.True(t, score.PenaltyApplied)
	assert.InDelta(t, fixtureEvaluatorComposite*scoring.SalvagedPenalty, score.Composite, 1e-9)
}

func TestEngine_ExtractionFailureRegeneratesOnce(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	calls := 0
	f.generateResponse = func() (*llm.Response, error) {
		calls++
		if calls == 1 {
			return &llm.Response{Text: "I am sorry, I cannot produce that survey.", ModelID: "mock-std"}, nil
		}
		return &llm.Response{Text: fixtureSurveyJSON, ModelID: "mock-std"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 1, run.RegenAttempts)
	assert.Equal(t, 2, calls)

	trans := f.transitions(id)
	require.Len(t, trans, 16)
	var regen *Transition
	for i := range trans {
		if trans[i].From == StepParsingOutput && trans[i].To == StepGeneratingQuestions {
			regen = &trans[i]
		}
	}
	require.NotNil(t, regen, "expected a regeneration back edge")
	assert.Contains(t, regen.Note, "extraction recovered nothing")
	assert.Equal(t, Percentage(StepParsingOutput), regen.Percent, "progress must not regress on the back edge")

	generations := f.auditByPurpose(id, "generation")
	require.Len(t, generations, 2)
	assert.Equal(t, "questions", generations[0].SubPurpose)
	assert.Equal(t, "questions_regen_1", generations[1].SubPurpose)
}

func TestEngine_ExtractionFailureExhaustedFailsRun(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.generateResponse = func() (*llm.Response, error) {
		return &llm.Response{Text: "I am sorry, I cannot produce that survey.", ModelID: "mock-std"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output extraction failed")
	var failure *extraction.Failure
	assert.ErrorAs(t, err, &failure)

	run := f.mustLoad(id)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, StepParsingOutput, run.Step)
	assert.Equal(t, maxRegenAttempts, run.RegenAttempts)
	assert.Contains(t, run.FailureReason, "no question content recovered")

	trans := f.transitions(id)
	last := trans[len(trans)-1]
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, StepParsingOutput, last.From)
	assert.Equal(t, StepParsingOutput, last.To)
	assert.Contains(t, last.Note, "failed:")

	require.Len(t, f.auditByPurpose(id, "generation"), 2)
}

// A run rehydrated at validation_scoring with a survey that no longer passes
// the schema gets the same bounded regeneration as a fresh extraction.
func TestEngine_SchemaValidationFailureRegenerates(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()

	now := time.Now().UTC()
	run := &WorkflowRun{
		ID:         uuid.New(),
		Step:       StepValidationScoring,
		Status:     StatusRunning,
		RFQText:    fixtureRFQ,
		Seq:        1,
		MaxPercent: Percentage(StepValidationScoring),
		Artifacts: Artifacts{
			GenerationPrompt: "APPROVED METHODOLOGY PLAN\nregenerate the survey",
			Survey: &types.SurveyDocument{
				Title: "Broken Survey",
				Sections: []types.Section{{
					Title:     "Only",
					Questions: []types.Question{{ID: "", Text: "Which team are you on?", Type: types.QuestionOpenText}},
				}},
			},
			Confidence: types.ConfidenceExact,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.CreateRun(ctx, run))

	outcome, err := f.engine.Advance(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StepValidationScoring, outcome.Step)
	assert.Equal(t, StepGeneratingQuestions, outcome.Run.Step)
	assert.Equal(t, 1, outcome.Run.RegenAttempts)

	trans := f.transitions(run.ID)
	assert.Contains(t, trans[len(trans)-1].Note, "schema validation failed")

	final, err := f.engine.Run(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 100, final.MaxPercent)
	assert.InDelta(t, fixtureEvaluatorComposite, final.Artifacts.Score.Composite, 1e-9)

	generations := f.auditByPurpose(run.ID, "generation")
	require.Len(t, generations, 1)
	assert.Equal(t, "questions_regen_1", generations[0].SubPurpose)
}

func TestEngine_SchemaValidationFailureExhaustedFails(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()

	now := time.Now().UTC()
	run := &WorkflowRun{
		ID:            uuid.New(),
		Step:          StepValidationScoring,
		Status:        StatusRunning,
		RFQText:       fixtureRFQ,
		Seq:           1,
		MaxPercent:    Percentage(StepValidationScoring),
		RegenAttempts: maxRegenAttempts,
		Artifacts: Artifacts{
			Survey: &types.SurveyDocument{
				Title: "Broken Survey",
				Sections: []types.Section{{
					Title:     "Only",
					Questions: []types.Question{{ID: "", Text: "Which team are you on?", Type: types.QuestionOpenText}},
				}},
			},
			Confidence: types.ConfidenceExact,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.store.CreateRun(ctx, run))

	_, err := f.engine.Advance(ctx, run.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed schema validation")
	var validation *schemas.ValidationError
	assert.ErrorAs(t, err, &validation)

	stored := f.mustLoad(run.ID)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestEngine_SuspendsForReviewAndResumesOnApprove(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, run.Status)
	assert.Equal(t, StepHumanReview, run.Step)
	assert.Equal(t, Percentage(StepHumanReview), run.MaxPercent)

	status, err := f.engine.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 42, status.Percent)
	assert.Equal(t, StatusAwaitingReview, status.Status)

	_, err = f.engine.Advance(ctx, id)
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "advance", invalid.Op)
	assert.Contains(t, invalid.Error(), "cannot advance")

	resumed, err := f.engine.Resume(ctx, id, types.ReviewDecision{Decision: types.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, StepPreparingGeneration, resumed.Step)
	assert.Equal(t, StatusRunning, resumed.Status)

	final, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.InDelta(t, fixtureEvaluatorComposite, final.Artifacts.Score.Composite, 1e-9)

	reviews := f.auditByPurpose(id, "human_review")
	require.Len(t, reviews, 1)
	assert.Equal(t, types.DecisionApprove, reviews[0].SubPurpose)
	assert.Equal(t, "reviewer", reviews[0].ModelID)
	assert.Contains(t, reviews[0].Prompt, "Survey plan:")

	trans := f.transitions(id)
	require.Len(t, trans, 15)
	assert.Contains(t, trans[6].Note, "awaiting reviewer decision")
	assert.Equal(t, StatusAwaitingReview, trans[6].Status)
	assert.Equal(t, "review approved", trans[7].Note)
}

func TestEngine_ResumeEditReplacesDraftAndKeepsOriginalInAudit(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	original := f.mustLoad(id).Artifacts.PlanDraft
	require.Contains(t, original, "Survey plan: mixed_methods")

	edited := "Survey plan: engineer-edited, two sections only.\n1. Tooling (4 questions)\n2. Loyalty (4 questions)"
	resumed, err := f.engine.Resume(ctx, id, types.ReviewDecision{
		Decision:      types.DecisionEdit,
		EditedContent: edited,
	})
	require.NoError(t, err)
	assert.Equal(t, edited, resumed.Artifacts.PlanDraft)

	final, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Contains(t, final.Artifacts.GenerationPrompt, "engineer-edited, two sections only")
	assert.NotContains(t, final.Artifacts.GenerationPrompt, "Survey plan: mixed_methods")

	reviews := f.auditByPurpose(id, "human_review")
	require.Len(t, reviews, 1)
	assert.Equal(t, types.DecisionEdit, reviews[0].SubPurpose)
	assert.Equal(t, original, reviews[0].Prompt, "audit keeps the pre-edit draft")
	assert.Equal(t, edited, reviews[0].Response)

	trans := f.transitions(id)
	assert.Equal(t, "review approved with edited plan", trans[7].Note)
}

func TestEngine_RejectLoopIsBounded(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	resumed, err := f.engine.Resume(ctx, id, types.ReviewDecision{
		Decision: types.DecisionReject,
		Feedback: "add a pricing section",
	})
	require.NoError(t, err)
	assert.Equal(t, StepPlanningMethodologies, resumed.Step)
	assert.Equal(t, 1, resumed.PlanRejections)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, run.Status)
	assert.Contains(t, run.Artifacts.PlanDraft, "Revised after reviewer feedback: add a pricing section")

	_, err = f.engine.Resume(ctx, id, types.ReviewDecision{
		Decision: types.DecisionReject,
		Feedback: "too many questions",
	})
	require.NoError(t, err)
	run, err = f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, run.Status)
	assert.Contains(t, run.Artifacts.PlanDraft, "add a pricing section; too many questions")

	// The third rejection exceeds the budget of two and fails the run.
	run, err = f.engine.Resume(ctx, id, types.ReviewDecision{
		Decision: types.DecisionReject,
		Feedback: "still wrong",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, 3, run.PlanRejections)
	assert.Contains(t, run.FailureReason, "plan rejected 3 times, limit is 2")

	_, err = f.engine.Resume(ctx, id, types.ReviewDecision{Decision: types.DecisionApprove})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "resume", invalid.Op)

	prev := 0
	for _, ev := range f.events {
		assert.GreaterOrEqual(t, ev.Percent, prev, "reject loop must not roll progress back")
		prev = ev.Percent
	}

	reviews := f.auditByPurpose(id, "human_review")
	assert.Len(t, reviews, 3)
}

func TestEngine_RejectFeedbackReachesGenerationPrompt(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	_, err = f.engine.Resume(ctx, id, types.ReviewDecision{
		Decision: types.DecisionReject,
		Feedback: "cover on-call burden too",
	})
	require.NoError(t, err)
	_, err = f.engine.Run(ctx, id)
	require.NoError(t, err)

	_, err = f.engine.Resume(ctx, id, types.ReviewDecision{Decision: types.DecisionApprove})
	require.NoError(t, err)
	final, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, final.Status)
	assert.Contains(t, final.Artifacts.GenerationPrompt, "Reviewer feedback to honor:")
	assert.Contains(t, final.Artifacts.GenerationPrompt, "- cover on-call burden too")
}

func TestEngine_ResumeRejectsBadInput(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Resume(ctx, id, types.ReviewDecision{Decision: "promote"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid review decision")

	// A valid decision against a run that is not suspended.
	_, err = f.engine.Resume(ctx, id, types.ReviewDecision{Decision: types.DecisionApprove})
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "resume", invalid.Op)

	_, err = f.engine.Resume(ctx, uuid.New(), types.ReviewDecision{Decision: types.DecisionApprove})
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestEngine_CancelParksRun(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Advance(ctx, id)
	require.NoError(t, err)

	require.NoError(t, f.engine.Cancel(ctx, id))

	run := f.mustLoad(id)
	assert.Equal(t, StatusCancelled, run.Status)
	assert.Equal(t, StepGeneratingEmbeddings, run.Step)
	assert.Empty(t, run.FailureReason)

	trans := f.transitions(id)
	last := trans[len(trans)-1]
	assert.Equal(t, "cancelled", last.Note)
	assert.Equal(t, StatusCancelled, last.Status)
	assert.Equal(t, last.From, last.To)

	var invalid *InvalidTransitionError
	_, err = f.engine.Advance(ctx, id)
	require.ErrorAs(t, err, &invalid)
	err = f.engine.Cancel(ctx, id)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "cancel", invalid.Op)
}

func TestEngine_ContextCancelledBeforeAdvance(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	id := f.start(context.Background())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Advance(cancelled, id)
	var cancelledErr *CancelledError
	require.ErrorAs(t, err, &cancelledErr)
	assert.Equal(t, id, cancelledErr.RunID)
	assert.ErrorIs(t, err, context.Canceled)

	run := f.mustLoad(id)
	assert.Equal(t, StatusCancelled, run.Status)
	assert.Contains(t, run.FailureReason, "context canceled")
}

func TestEngine_ContextCancelledMidCall(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.generateResponse = func() (*llm.Response, error) {
		return nil, context.Canceled
	}
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	var cancelledErr *CancelledError
	require.ErrorAs(t, err, &cancelledErr)

	run := f.mustLoad(id)
	assert.Equal(t, StatusCancelled, run.Status)
	assert.Equal(t, StepGeneratingQuestions, run.Step)
}

func TestEngine_CompletedRunIsIdempotent(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	ctx := context.Background()
	id := f.start(ctx)

	first, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)
	before := f.transitions(id)

	outcome, err := f.engine.Advance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StepCompleted, outcome.Step)
	assert.Equal(t, StatusCompleted, outcome.Run.Status)

	again, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, first.UpdatedAt, again.UpdatedAt)
	assert.Len(t, f.transitions(id), len(before))
}

func TestEngine_EvaluatorDegradedFallsBackDeterministically(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.evaluateResponse = func() (*llm.Response, error) {
		partial := `{"pillar_scores": {"content_validity": 0.9, "methodological_rigor": 0.85}, "rule_results": [], "summary": "partial"}`
		return &llm.Response{Text: partial, ModelID: "mock-eval"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err, "a degraded evaluator must never fail the run")

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Nil(t, run.Artifacts.Evaluation)
	assert.Equal(t, "evaluator returned 2 of 5 pillar scores", run.Artifacts.DegradedReason)

	score := run.Artifacts.Score
	require.NotNil(t, score)
	assert.Equal(t, scoring.MethodFallback, score.Method)
	assert.True(t, score.Degraded)
	assert.False(t, score.PenaltyApplied)
	assert.InDelta(t, 1.0, score.Composite, 1e-9, "the fixture survey passes every structural rule")

	require.Len(t, score.Pillars, 5)
	ruleCounts := map[scoring.Pillar]int{}
	for _, p := range score.Pillars {
		assert.InDelta(t, 1.0, p.Score, 1e-9)
		ruleCounts[p.Pillar] = len(p.Results)
		for _, r := range p.Results {
			assert.True(t, r.Passed, "rule %s unexpectedly failed", r.RuleID)
		}
	}
	assert.Equal(t, 2, ruleCounts[scoring.PillarContentValidity])
	assert.Equal(t, 4, ruleCounts[scoring.PillarMethodologicalRigor])

	trans := f.transitions(id)
	notes := make([]string, len(trans))
	for i, tr := range trans {
		notes[i] = tr.Note
	}
	assert.Contains(t, strings.Join(notes, "\n"), "evaluation degraded: evaluator returned 2 of 5 pillar scores")
	assert.Contains(t, strings.Join(notes, "\n"), "skipped: no evaluation to analyze")
	assert.Contains(t, trans[len(trans)-1].Note, "via fallback")

	// The call itself succeeded; only parsing degraded.
	evaluations := f.auditByPurpose(id, "evaluation")
	require.Len(t, evaluations, 1)
	assert.True(t, evaluations[0].Success)
}

func TestEngine_EvaluatorUnavailableFallsBack(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true, MaxAttempts: 2})
	f.evaluateResponse = func() (*llm.Response, error) {
		return nil, &llm.ModelUnavailableError{Model: "mock-eval", Cause: errors.New("503 overloaded")}
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Contains(t, run.Artifacts.DegradedReason, "unavailable")

	score := run.Artifacts.Score
	require.NotNil(t, score)
	assert.Equal(t, scoring.MethodFallback, score.Method)
	assert.InDelta(t, 1.0, score.Composite, 1e-9)

	evaluations := f.auditByPurpose(id, "evaluation")
	require.Len(t, evaluations, 2, "transient evaluator failures are retried before degrading")
	for _, r := range evaluations {
		assert.False(t, r.Success)
		assert.Contains(t, r.Response, "unavailable")
	}
}

func TestEngine_TransientGenerationFailureRetries(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	calls := 0
	f.generateResponse = func() (*llm.Response, error) {
		calls++
		if calls == 1 {
			return nil, &llm.ModelUnavailableError{Model: "mock-std", Cause: errors.New("rate limited")}
		}
		return &llm.Response{Text: fixtureSurveyJSON, ModelID: "mock-std"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, run.RegenAttempts, "an in-step retry is not a regeneration")

	generations := f.auditByPurpose(id, "generation")
	require.Len(t, generations, 2)
	assert.False(t, generations[0].Success)
	assert.Equal(t, "questions", generations[0].SubPurpose)
	assert.True(t, generations[1].Success)
	assert.Equal(t, "questions", generations[1].SubPurpose)

	assert.Len(t, f.transitions(id), 14, "retries happen inside the step, not in the transition log")
}

func TestEngine_EmbeddingUnavailableFailsRun(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true, MaxAttempts: 2})
	f.embed = func(ctx context.Context, text string) ([]float32, error) {
		return nil, &embedding.UnavailableError{Model: "emb-model", Cause: errors.New("connection refused")}
	}
	ctx := context.Background()
	id := f.start(ctx)

	_, err := f.engine.Run(ctx, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFQ embedding failed")
	var unavailable *embedding.UnavailableError
	assert.ErrorAs(t, err, &unavailable)

	run := f.mustLoad(id)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, StepGeneratingEmbeddings, run.Step)
	assert.Contains(t, run.FailureReason, "embedding model emb-model unavailable")

	status, err := f.engine.GetStatus(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, status.Status)
	assert.Equal(t, Percentage(StepGeneratingEmbeddings), status.Percent)
	assert.Contains(t, status.FailureReason, "unavailable")

	embeddings := f.auditByPurpose(id, "embedding")
	require.Len(t, embeddings, 2)
	for _, r := range embeddings {
		assert.False(t, r.Success)
	}
	assert.Equal(t, embeddings[1].ID, run.LastAuditID)

	assert.Len(t, f.transitions(id), 3)
}

func TestEngine_NoMatchesUsesGenericTemplate(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.embed = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{0, 0, 1}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, run.Status)
	assert.Empty(t, run.Artifacts.Matches)
	assert.Contains(t, run.Artifacts.GenerationPrompt, "No reference surveys are available")
	assert.NotContains(t, run.Artifacts.GenerationPrompt, "### Example")

	trans := f.transitions(id)
	assert.Contains(t, trans[4].Note, "0 golden examples")
	assert.Contains(t, trans[7].Note, "generic template")
}

func TestEngine_BlankProfileTopicFallsBackToRFQ(t *testing.T) {
	f := newEngineFixture(t, Options{AutoApprove: true})
	f.parseResponse = func() (*llm.Response, error) {
		return &llm.Response{Text: `{"topic": "  ", "objectives": []}`, ModelID: "mock-lite"}, nil
	}
	ctx := context.Background()
	id := f.start(ctx)

	run, err := f.engine.Run(ctx, id)
	require.NoError(t, err)

	require.NotNil(t, run.Artifacts.Profile)
	assert.Equal(t, "Developer satisfaction survey for our internal build platform.", run.Artifacts.Profile.Topic)

	// No stated count and two matched examples of two questions each: the
	// average clamps up to the minimum.
	assert.Equal(t, minTargetQuestions, run.Artifacts.Plan.TargetQuestions)
	assert.Equal(t, StatusCompleted, run.Status)
}

func TestEngine_StartRejectsEmptyRFQ(t *testing.T) {
	f := newEngineFixture(t, Options{})
	for _, rfq := range []string{"", "   \n\t "} {
		id, err := f.engine.Start(context.Background(), rfq, "empty.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RFQ text is empty")
		assert.Equal(t, uuid.Nil, id)
	}
}

func TestEngine_UnknownRunID(t *testing.T) {
	f := newEngineFixture(t, Options{})
	ctx := context.Background()
	id := uuid.New()

	_, err := f.engine.Advance(ctx, id)
	require.ErrorIs(t, err, ErrRunNotFound)
	_, err = f.engine.GetStatus(ctx, id)
	require.ErrorIs(t, err, ErrRunNotFound)
	err = f.engine.Cancel(ctx, id)
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestNewEngine_RequiresCollaborators(t *testing.T) {
	base := func() Deps {
		f := newEngineFixture(t, Options{})
		return Deps{
			Store:    f.store,
			LLM:      &MockLLMClient{},
			Embedder: embedderFunc(func(ctx context.Context, text string) ([]float32, error) { return nil, nil }),
			Matcher:  matching.NewMatcher(f.index, f.index, nil),
			Scorer:   scoring.NewEngine(&MockLLMClient{}, mustRules(t), nil, nil),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
		want   string
	}{
		{"missing store", func(d *Deps) { d.Store = nil }, "requires a store"},
		{"missing llm", func(d *Deps) { d.LLM = nil }, "requires an LLM client"},
		{"missing embedder", func(d *Deps) { d.Embedder = nil }, "requires an embedder"},
		{"missing matcher", func(d *Deps) { d.Matcher = nil }, "requires a matcher"},
		{"missing scorer", func(d *Deps) { d.Scorer = nil }, "requires a scoring engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := base()
			tt.mutate(&deps)
			_, err := NewEngine(deps, Options{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	deps := base()
	engine, err := NewEngine(deps, Options{})
	require.NoError(t, err)
	assert.NotNil(t, engine)
}

func mustRules(t *testing.T) *scoring.RuleSet {
	t.Helper()
	rules, err := scoring.LoadDefault()
	require.NoError(t, err)
	return rules
}

// Auditing is optional; a nil recorder must not change run behavior.
func TestEngine_RunsWithoutRecorder(t *testing.T) {
	f := newEngineFixture(t, Options{})

	engine, err := NewEngine(Deps{
		Store:    NewMemoryStore(),
		LLM:      f.engine.llm,
		Embedder: embedderFunc(func(ctx context.Context, text string) ([]float32, error) { return f.embed(ctx, text) }),
		Matcher:  matching.NewMatcher(f.index, f.index, nil),
		Scorer:   scoring.NewEngine(f.engine.llm, mustRules(t), nil, nil),
	}, Options{AutoApprove: true, RetryBaseDelay: time.Millisecond})
	require.NoError(t, err)

	ctx := context.Background()
	id, err := engine.Start(ctx, fixtureRFQ, "no-audit.txt")
	require.NoError(t, err)

	run, err := engine.Run(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, uuid.Nil, run.LastAuditID)
}
