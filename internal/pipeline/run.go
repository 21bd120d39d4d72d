// Package pipeline orchestrates the survey-generation workflow: an explicit
// step machine that carries a run from raw RFQ text through retrieval,
// planning, human review, generation, extraction, and scoring to a completed
// survey artifact. Runs are durable; every transition is recorded through
// the Store before the next step begins, so a run survives suspension and
// process restarts.
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/nvasquez/survey-generator/internal/scoring"
	"github.com/nvasquez/survey-generator/internal/types"
)

// WorkflowRun is the full durable state of one survey-generation run. It is
// mutated only by the Engine; components receive copies of the pieces they
// need and never write back.
type WorkflowRun struct {
	ID     uuid.UUID `json:"id"`
	Step   Step      `json:"step"`
	Status Status    `json:"status"`

	RFQText   string `json:"rfq_text"`
	RFQSource string `json:"rfq_source,omitempty"`

	// Seq counts recorded transitions; MaxPercent is the highest progress
	// percentage ever reported, so loops never show regress.
	Seq        int `json:"seq"`
	MaxPercent int `json:"max_percent"`

	// PlanRejections counts reviewer reject decisions; RegenAttempts counts
	// regeneration retries after a failed extraction. Both are bounded.
	PlanRejections int `json:"plan_rejections"`
	RegenAttempts  int `json:"regen_attempts"`

	FailureReason string    `json:"failure_reason,omitempty"`
	LastAuditID   uuid.UUID `json:"last_audit_id,omitempty"`

	Artifacts Artifacts `json:"artifacts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Artifacts collects everything the steps produce. Later steps read earlier
// entries; all of it persists with the run so a resumed run picks up exactly
// where it suspended.
type Artifacts struct {
	Profile   *types.RFQProfile `json:"profile,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
	Matches   []types.Match     `json:"matches,omitempty"`

	Plan         *types.MethodologyPlan `json:"plan,omitempty"`
	PlanDraft    string                 `json:"plan_draft,omitempty"`
	PlanFeedback []string               `json:"plan_feedback,omitempty"`

	GenerationPrompt string `json:"generation_prompt,omitempty"`
	RawOutput        string `json:"raw_output,omitempty"`

	Survey     *types.SurveyDocument `json:"survey,omitempty"`
	Confidence types.Confidence      `json:"confidence,omitempty"`
	Strategy   string                `json:"strategy,omitempty"`

	Evaluation     *scoring.Evaluation     `json:"evaluation,omitempty"`
	DegradedReason string                  `json:"degraded_reason,omitempty"`
	Score          *scoring.CompositeScore `json:"score,omitempty"`
}

// Transition is one durably recorded step or status change. Seq is the
// per-run ordinal; ListTransitions returns ascending Seq. A transition with
// From == To records a status-only change (suspension, cancellation).
type Transition struct {
	RunID   uuid.UUID `json:"run_id"`
	Seq     int       `json:"seq"`
	From    Step      `json:"from"`
	To      Step      `json:"to"`
	Status  Status    `json:"status"`
	Percent int       `json:"percent"`
	Note    string    `json:"note,omitempty"`
	At      time.Time `json:"at"`
}

// StepOutcome is what one Advance call produced: the step that executed and
// the run state after it.
type StepOutcome struct {
	Step Step
	Run  *WorkflowRun
}

// RunStatus is the read-only view served by GetStatus.
type RunStatus struct {
	RunID         uuid.UUID `json:"run_id"`
	Step          Step      `json:"step"`
	Percent       int       `json:"percent"`
	Status        Status    `json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressEvent represents a progress update during pipeline execution.
type ProgressEvent struct {
	RunID   uuid.UUID `json:"run_id"`
	Step    Step      `json:"step"`
	Percent int       `json:"percent"`
	Status  Status    `json:"status"`
	Message string    `json:"message,omitempty"`
}

// ProgressCallback is called on every recorded transition. Delivery is
// at-least-once and never load-bearing: a slow or absent callback must not
// affect run correctness.
type ProgressCallback func(event ProgressEvent)
