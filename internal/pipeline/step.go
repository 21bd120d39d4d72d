package pipeline

import (
	"fmt"
)

// Step identifies one stage of the survey-generation workflow. The names are
// a stable contract shared with the store and any UI consuming progress
// events; they must not change between releases.
type Step string

const (
	StepParsingRFQ             Step = "parsing_rfq"
	StepGeneratingEmbeddings   Step = "generating_embeddings"
	StepRFQParsed              Step = "rfq_parsed"
	StepMatchingGoldenExamples Step = "matching_golden_examples"
	StepPlanningMethodologies  Step = "planning_methodologies"
	StepHumanReview            Step = "human_review"
	StepPreparingGeneration    Step = "preparing_generation"
	StepGeneratingQuestions    Step = "generating_questions"
	StepParsingOutput          Step = "parsing_output"
	StepValidationScoring      Step = "validation_scoring"
	StepSingleCallEvaluator    Step = "single_call_evaluator"
	StepPillarScoresAnalysis   Step = "pillar_scores_analysis"
	StepFallbackEvaluation     Step = "fallback_evaluation"
	StepCompleted              Step = "completed"
)

// Steps returns the workflow steps in execution order.
func Steps() []Step {
	return []Step{
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
}

var stepPosition = buildStepPositions()

func buildStepPositions() map[Step]int {
	positions := make(map[Step]int, len(Steps()))
	for i, s := range Steps() {
		positions[s] = i + 1
	}
	return positions
}

// KnownStep reports whether s names a workflow step.
func KnownStep(s Step) bool {
	_, ok := stepPosition[s]
	return ok
}

// Percentage maps a step to its progress percentage:
// floor(position/totalSteps*100) over the 1-based step position, so the
// first step reports a nonzero figure once underway and completed reports
// exactly 100. Unknown steps report 0.
func Percentage(s Step) int {
	pos, ok := stepPosition[s]
	if !ok {
		return 0
	}
	return pos * 100 / len(Steps())
}

// Status is the lifecycle state of a workflow run.
type Status string

const (
	StatusRunning        Status = "running"
	StatusAwaitingReview Status = "awaiting_review"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
)

// Terminal reports whether a run in this status can never advance again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// allowedTransitions is the explicit step graph. Forward edges follow the
// execution order; the two back edges are the reviewer reject loop
// (human_review -> planning_methodologies) and the bounded regeneration
// retry after a failed extraction or schema validation
// (parsing_output/validation_scoring -> generating_questions).
var allowedTransitions = map[Step][]Step{
	StepParsingRFQ:             {StepGeneratingEmbeddings},
	StepGeneratingEmbeddings:   {StepRFQParsed},
	StepRFQParsed:              {StepMatchingGoldenExamples},
	StepMatchingGoldenExamples: {StepPlanningMethodologies},
	StepPlanningMethodologies:  {StepHumanReview},
	StepHumanReview:            {StepPreparingGeneration, StepPlanningMethodologies},
	StepPreparingGeneration:    {StepGeneratingQuestions},
	StepGeneratingQuestions:    {StepParsingOutput},
	StepParsingOutput:          {StepValidationScoring, StepGeneratingQuestions},
	StepValidationScoring:      {StepSingleCallEvaluator, StepGeneratingQuestions},
	StepSingleCallEvaluator:    {StepPillarScoresAnalysis},
	StepPillarScoresAnalysis:   {StepFallbackEvaluation},
	StepFallbackEvaluation:     {StepCompleted},
	StepCompleted:              nil,
}

// canTransition reports whether moving from one step to another is a legal
// edge. A step may always "transition" to itself; that is how status-only
// changes (suspension, cancellation) are recorded.
func canTransition(from, to Step) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// validateTransitionTable checks the step graph at construction time:
// every step in order must be present, every edge must point at a known
// step, and every step except the first must be reachable. A broken table
// is a programming error surfaced before any run starts.
func validateTransitionTable() error {
	ordered := Steps()

	reachable := map[Step]bool{ordered[0]: true}
	for from, targets := range allowedTransitions {
		if !KnownStep(from) {
			return fmt.Errorf("transition table names unknown step %q", from)
		}
		for _, to := range targets {
			if !KnownStep(to) {
				return fmt.Errorf("transition from %s targets unknown step %q", from, to)
			}
			reachable[to] = true
		}
	}

	for _, s := range ordered {
		if _, ok := allowedTransitions[s]; !ok {
			return fmt.Errorf("step %s has no transition table entry", s)
		}
		if !reachable[s] {
			return fmt.Errorf("step %s is unreachable", s)
		}
	}

	if len(allowedTransitions[StepCompleted]) != 0 {
		return fmt.Errorf("completed must be terminal, found outgoing edges")
	}
	return nil
}
