package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/audit"
	"github.com/nvasquez/survey-generator/internal/extraction"
	"github.com/nvasquez/survey-generator/internal/llm"
	"github.com/nvasquez/survey-generator/internal/prompts"
	"github.com/nvasquez/survey-generator/internal/types"
)

// DegradedError reports that the LLM evaluator could not produce a complete
// pillar evaluation. The caller is expected to fall back to deterministic
// scoring rather than fail the run.
type DegradedError struct {
	Reason string
	Cause  error
}

func (e *DegradedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("evaluation degraded: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("evaluation degraded: %s", e.Reason)
}

func (e *DegradedError) Unwrap() error {
	return e.Cause
}

// Evaluation is the parsed output of one consolidated evaluator call.
type Evaluation struct {
	PillarScores map[Pillar]float64 `json:"pillar_scores"`
	RuleResults  []RuleResult       `json:"rule_results,omitempty"`
	Summary      string             `json:"summary,omitempty"`
	ModelID      string             `json:"model_id,omitempty"`
}

// evaluatorResponse is the wire shape the model is asked to return.
type evaluatorResponse struct {
	PillarScores map[string]float64 `json:"pillar_scores"`
	RuleResults  []RuleResult       `json:"rule_results"`
	Summary      string             `json:"summary"`
}

// pillarScoreRE recovers individual pillar scores from malformed evaluator
// output, one pattern per pillar.
var pillarScoreRE = buildPillarPatterns()

func buildPillarPatterns() map[Pillar]*regexp.Regexp {
	patterns := make(map[Pillar]*regexp.Regexp, len(Pillars()))
	for _, p := range Pillars() {
		patterns[p] = regexp.MustCompile(`"` + string(p) + `"\s*:\s*"?(-?[0-9]*\.?[0-9]+)"?`)
	}
	return patterns
}

// Engine scores survey documents. The primary path is one consolidated LLM
// call covering all five pillars; Fallback is the deterministic path.
type Engine struct {
	client   llm.Client
	rules    *RuleSet
	recorder audit.Recorder
	logger   *zap.Logger
	tier     llm.ModelTier
}

// NewEngine creates a scoring engine. The recorder may be nil, in which case
// evaluator calls are not audited. A nil logger falls back to a no-op logger.
func NewEngine(client llm.Client, rules *RuleSet, recorder audit.Recorder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:   client,
		rules:    rules,
		recorder: recorder,
		logger:   logger,
		tier:     llm.TierStandard,
	}
}

// Rules exposes the engine's rule set.
func (e *Engine) Rules() *RuleSet {
	return e.rules
}

// EvaluatePrimary runs the consolidated LLM evaluation for a document. It
// makes exactly one model call; retry policy belongs to the caller. Transport
// errors are returned as-is so the caller can classify them; an unusable or
// incomplete response is reported as *DegradedError.
func (e *Engine) EvaluatePrimary(ctx context.Context, runID uuid.UUID, doc *types.SurveyDocument) (*Evaluation, error) {
	prompt, err := e.buildEvaluationPrompt(doc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := e.client.GenerateJSON(ctx, prompt, e.tier)
	e.record(ctx, runID, prompt, resp, err, start)
	if err != nil {
		return nil, err
	}

	eval, err := e.parseEvaluation(resp.Text)
	if err != nil {
		return nil, err
	}
	eval.ModelID = resp.ModelID

	e.logger.Debug("evaluator call complete",
		zap.String("run_id", runID.String()),
		zap.String("model", resp.ModelID),
		zap.Int("rule_results", len(eval.RuleResults)))

	return eval, nil
}

func (e *Engine) record(ctx context.Context, runID uuid.UUID, prompt string, resp *llm.Response, callErr error, start time.Time) {
	if e.recorder == nil {
		return
	}

	entry := audit.Entry{
		RunID:      runID,
		Purpose:    "evaluation",
		SubPurpose: "single_call",
		ModelID:    e.client.GetModel(e.tier),
		Prompt:     prompt,
		Success:    callErr == nil,
		LatencyMs:  audit.Elapsed(start),
	}
	if resp != nil {
		entry.ModelID = resp.ModelID
		entry.Response = resp.Text
		entry.InputTokens = resp.InputTokens
		entry.OutputTokens = resp.OutputTokens
	} else if callErr != nil {
		entry.Response = callErr.Error()
	}

	if _, err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("failed to record evaluator audit entry",
			zap.String("run_id", runID.String()),
			zap.Error(err))
	}
}

// parseEvaluation decodes evaluator output leniently. If structured decoding
// fails, or decodes with pillar scores missing, the missing scores are
// recovered per-pillar by pattern matching over the raw text. Fewer than five
// recovered pillars is a degraded evaluation.
func (e *Engine) parseEvaluation(raw string) (*Evaluation, error) {
	collected := make(map[Pillar]float64, len(Pillars()))
	var results []RuleResult
	var summary string

	var wire evaluatorResponse
	decodeErr := extraction.DecodeLenient(raw, &wire)
	if decodeErr == nil {
		for name, score := range wire.PillarScores {
			p := Pillar(strings.ToLower(strings.TrimSpace(name)))
			if !knownPillar(p) {
				e.logger.Debug("evaluator returned unknown pillar", zap.String("pillar", name))
				continue
			}
			collected[p] = clampScore(score)
		}
		results = e.filterRuleResults(wire.RuleResults)
		summary = wire.Summary
	}

	for _, p := range Pillars() {
		if _, ok := collected[p]; ok {
			continue
		}
		if score, ok := salvagePillarScore(raw, p); ok {
			collected[p] = score
		}
	}

	if len(collected) < len(Pillars()) {
		return nil, &DegradedError{
			Reason: fmt.Sprintf("evaluator returned %d of %d pillar scores", len(collected), len(Pillars())),
			Cause:  decodeErr,
		}
	}

	return &Evaluation{
		PillarScores: collected,
		RuleResults:  results,
		Summary:      summary,
	}, nil
}

// filterRuleResults drops results whose rule id is not in the rule set. The
// model occasionally invents ids; they must not reach the stored artifact.
func (e *Engine) filterRuleResults(results []RuleResult) []RuleResult {
	kept := make([]RuleResult, 0, len(results))
	for _, r := range results {
		if _, _, ok := e.rules.RuleByID(r.RuleID); !ok {
			e.logger.Debug("evaluator returned unknown rule id", zap.String("rule_id", r.RuleID))
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func salvagePillarScore(raw string, p Pillar) (float64, bool) {
	m := pillarScoreRE[p].FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return clampScore(score), true
}

// Analyze turns a complete evaluation into the composite artifact. A missing
// pillar is reported as *DegradedError; EvaluatePrimary guarantees
// completeness, but Analyze re-checks because evaluations can be rehydrated
// from storage.
func (e *Engine) Analyze(eval *Evaluation, confidence types.Confidence) (*CompositeScore, error) {
	byPillar := make(map[Pillar][]RuleResult)
	for _, r := range eval.RuleResults {
		if _, pillar, ok := e.rules.RuleByID(r.RuleID); ok {
			byPillar[pillar] = append(byPillar[pillar], r)
		}
	}

	pillarScores := make([]PillarScore, 0, len(Pillars()))
	for _, p := range Pillars() {
		score, ok := eval.PillarScores[p]
		if !ok {
			return nil, &DegradedError{Reason: fmt.Sprintf("evaluation is missing pillar %s", p)}
		}
		pillarScores = append(pillarScores, PillarScore{
			Pillar:  p,
			Weight:  e.rules.PillarWeight(p),
			Score:   score,
			Results: byPillar[p],
		})
	}

	composite := compose(pillarScores, confidence, MethodEvaluator, false)
	composite.Summary = eval.Summary
	return composite, nil
}

func (e *Engine) buildEvaluationPrompt(doc *types.SurveyDocument) (string, error) {
	docJSON, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode survey for evaluation: %w", err)
	}

	var rules strings.Builder
	for _, pillar := range e.rules.Pillars {
		fmt.Fprintf(&rules, "%s (weight %.2f):\n", pillar.Name, pillar.Weight)
		for _, rule := range pillar.Rules {
			fmt.Fprintf(&rules, "  - [%s] (%s) %s\n", rule.ID, rule.Priority, rule.Description)
		}
	}

	template := prompts.MustGet("evaluation.json", "single-call-evaluation")
	return prompts.Format(template, map[string]string{
		"Survey": string(docJSON),
		"Rules":  rules.String(),
	}), nil
}
