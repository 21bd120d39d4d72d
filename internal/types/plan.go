package types

// MethodologyPlan describes the intended structure and approach for a survey
// before any questions are generated. A plan is what the human reviewer sees
// during the review gate.
type MethodologyPlan struct {
	Approach        string        `json:"approach"`
	Methodologies   []string      `json:"methodologies,omitempty"`
	Sections        []SectionPlan `json:"sections"`
	TargetQuestions int           `json:"target_questions"`
	Rationale       string        `json:"rationale,omitempty"`
}

// SectionPlan sketches a single planned section.
type SectionPlan struct {
	Title         string   `json:"title"`
	Focus         string   `json:"focus,omitempty"`
	QuestionTypes []string `json:"question_types,omitempty"`
	QuestionCount int      `json:"question_count"`
}

// PlannedQuestions sums the per-section question counts.
func (p *MethodologyPlan) PlannedQuestions() int {
	total := 0
	for _, s := range p.Sections {
		total += s.QuestionCount
	}
	return total
}

// IsEmpty reports whether the plan has no usable section structure.
func (p *MethodologyPlan) IsEmpty() bool {
	return p == nil || len(p.Sections) == 0
}
