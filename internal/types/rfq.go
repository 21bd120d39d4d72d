package types

// RFQProfile is the structured reading of a free-text RFQ, produced by the
// parsing step and consumed by retrieval and planning.
type RFQProfile struct {
	Topic               string   `json:"topic"`
	Audience            string   `json:"audience,omitempty"`
	Objectives          []string `json:"objectives,omitempty"`
	Constraints         []string `json:"constraints,omitempty"`
	TargetQuestionCount int      `json:"target_question_count,omitempty"`
	Tone                string   `json:"tone,omitempty"`
	Language            string   `json:"language,omitempty"`
}
