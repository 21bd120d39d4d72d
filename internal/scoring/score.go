package scoring

import "github.com/nvasquez/survey-generator/internal/types"

// SalvagedPenalty is the multiplier applied to the composite score when the
// scored document was recovered by a salvage extraction strategy. Salvaged
// structure is a best-effort reconstruction, so its score must not read as
// confidently as a clean parse.
const SalvagedPenalty = 0.85

// Scoring methods recorded on the composite artifact.
const (
	MethodEvaluator = "evaluator"
	MethodFallback  = "fallback"
)

// RuleResult is the outcome of one rule, from either the LLM evaluator or
// the fallback checker.
type RuleResult struct {
	RuleID string `json:"rule_id"`
	Passed bool   `json:"passed"`
	Note   string `json:"note,omitempty"`
}

// PillarScore is one pillar's score with the rule outcomes that informed it.
type PillarScore struct {
	Pillar  Pillar       `json:"pillar"`
	Weight  float64      `json:"weight"`
	Score   float64      `json:"score"`
	Results []RuleResult `json:"results,omitempty"`
}

// CompositeScore is the final scoring artifact attached to a completed run.
// Pillars always appear in canonical order.
type CompositeScore struct {
	Pillars        []PillarScore    `json:"pillars"`
	Composite      float64          `json:"composite"`
	Method         string           `json:"method"`
	Degraded       bool             `json:"degraded"`
	PenaltyApplied bool             `json:"penalty_applied"`
	Confidence     types.Confidence `json:"confidence"`
	Summary        string           `json:"summary,omitempty"`
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// compose builds the composite artifact from per-pillar scores, applying the
// salvage penalty when the document confidence warrants it.
func compose(pillars []PillarScore, confidence types.Confidence, method string, degraded bool) *CompositeScore {
	total := 0.0
	for i := range pillars {
		pillars[i].Score = clampScore(pillars[i].Score)
		total += pillars[i].Weight * pillars[i].Score
	}
	total = clampScore(total)

	penalized := false
	if confidence == types.ConfidenceSalvaged {
		total *= SalvagedPenalty
		penalized = true
	}

	return &CompositeScore{
		Pillars:        pillars,
		Composite:      total,
		Method:         method,
		Degraded:       degraded,
		PenaltyApplied: penalized,
		Confidence:     confidence,
	}
}
