package scoring

import (
	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/types"
)

// Fallback scores a document deterministically by running every rule's
// structural check. Each pillar's score is the priority-weighted fraction of
// its rules that pass. The result is always marked degraded: structural
// checks approximate the pillars, they do not judge content.
func (e *Engine) Fallback(doc *types.SurveyDocument, confidence types.Confidence) *CompositeScore {
	pillarScores := make([]PillarScore, 0, len(Pillars()))

	for _, p := range Pillars() {
		rules := e.rules.RulesFor(p)
		results := make([]RuleResult, 0, len(rules))

		totalWeight := 0.0
		passedWeight := 0.0
		for _, rule := range rules {
			passed, note := runCheck(rule.Check, rule.Value, doc)
			weight := priorityWeight(rule.Priority)
			totalWeight += weight
			if passed {
				passedWeight += weight
			}
			results = append(results, RuleResult{RuleID: rule.ID, Passed: passed, Note: note})
		}

		score := 0.0
		if totalWeight > 0 {
			score = passedWeight / totalWeight
		}

		pillarScores = append(pillarScores, PillarScore{
			Pillar:  p,
			Weight:  e.rules.PillarWeight(p),
			Score:   score,
			Results: results,
		})
	}

	composite := compose(pillarScores, confidence, MethodFallback, true)

	e.logger.Info("fallback scoring applied",
		zap.Float64("composite", composite.Composite),
		zap.Bool("penalty_applied", composite.PenaltyApplied))

	return composite
}
