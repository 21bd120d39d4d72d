package types

import "github.com/go-playground/validator/v10"

// Review decision values supplied by the human-review gate.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionEdit    = "edit"
)

// ReviewDecision is the reviewer's verdict on a suspended run. For an edit
// decision, EditedContent replaces the draft plan before the run resumes.
type ReviewDecision struct {
	Decision      string `json:"decision" validate:"required,oneof=approve reject edit"`
	EditedContent string `json:"edited_content,omitempty" validate:"required_if=Decision edit"`
	Feedback      string `json:"feedback,omitempty"`
}

// Validate validates the ReviewDecision using the validator.
func (r *ReviewDecision) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
