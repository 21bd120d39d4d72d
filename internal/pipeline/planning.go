package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nvasquez/survey-generator/internal/prompts"
	"github.com/nvasquez/survey-generator/internal/types"
)

// Question-count bounds for derived plans. An RFQ asking for fewer than the
// minimum still gets a usable survey; one asking for more than the maximum
// is capped to keep generation output inside model token limits.
const (
	minTargetQuestions     = 3
	maxTargetQuestions     = 40
	defaultTargetQuestions = 10
	maxObjectiveSections   = 4
	maxPromptExamples      = 3
)

// methodologyRules maps RFQ vocabulary to survey methodologies. Scanned in
// order so derived plans are deterministic for a given profile.
var methodologyRules = []struct {
	keyword     string
	methodology string
}{
	{"satisfaction", "csat"},
	{"recommend", "nps"},
	{"loyalty", "nps"},
	{"usage", "usage_patterns"},
	{"behavior", "usage_patterns"},
	{"price", "pricing_sensitivity"},
	{"pricing", "pricing_sensitivity"},
	{"willingness to pay", "pricing_sensitivity"},
	{"brand", "brand_tracking"},
	{"awareness", "brand_tracking"},
	{"churn", "retention_analysis"},
	{"retention", "retention_analysis"},
}

// buildPlan derives a methodology plan from the RFQ profile, the retrieved
// golden examples, and any reviewer feedback from earlier reject decisions.
// The derivation is a pure function of its inputs: configuration rules only,
// no model calls.
func buildPlan(profile *types.RFQProfile, matches []types.Match, feedback []string) *types.MethodologyPlan {
	target := targetQuestionCount(profile, matches)
	methodologies := inferMethodologies(profile)

	sections := objectiveSections(profile, methodologies)
	withDemographics := target >= 8
	if withDemographics {
		sections = append(sections, types.SectionPlan{
			Title:         "Respondent Profile",
			Focus:         "classification questions for segmenting responses",
			QuestionTypes: []string{string(types.QuestionSingleChoice), string(types.QuestionMultipleChoice)},
		})
	}
	distributeQuestions(sections, target, withDemographics)

	approach := "structured_quantitative"
	for _, s := range sections {
		for _, qt := range s.QuestionTypes {
			if qt == string(types.QuestionOpenText) {
				approach = "mixed_methods"
			}
		}
	}

	return &types.MethodologyPlan{
		Approach:        approach,
		Methodologies:   methodologies,
		Sections:        sections,
		TargetQuestions: target,
		Rationale:       planRationale(profile, matches, target, feedback),
	}
}

// targetQuestionCount prefers the RFQ's stated count, then the average size
// of the retrieved examples, then the default. Always clamped.
func targetQuestionCount(profile *types.RFQProfile, matches []types.Match) int {
	target := profile.TargetQuestionCount
	if target <= 0 && len(matches) > 0 {
		total := 0
		for _, m := range matches {
			total += m.Example.Survey.QuestionCount()
		}
		target = total / len(matches)
	}
	if target <= 0 {
		target = defaultTargetQuestions
	}
	if target < minTargetQuestions {
		target = minTargetQuestions
	}
	if target > maxTargetQuestions {
		target = maxTargetQuestions
	}
	return target
}

func inferMethodologies(profile *types.RFQProfile) []string {
	haystack := strings.ToLower(profile.Topic)
	for _, obj := range profile.Objectives {
		haystack += " " + strings.ToLower(obj)
	}

	var out []string
	seen := make(map[string]bool)
	for _, rule := range methodologyRules {
		if strings.Contains(haystack, rule.keyword) && !seen[rule.methodology] {
			out = append(out, rule.methodology)
			seen[rule.methodology] = true
		}
	}
	if len(out) == 0 {
		out = []string{"descriptive_survey"}
	}
	return out
}

func objectiveSections(profile *types.RFQProfile, methodologies []string) []types.SectionPlan {
	usesNPS := false
	for _, m := range methodologies {
		if m == "nps" {
			usesNPS = true
		}
	}

	var sections []types.SectionPlan
	for _, obj := range profile.Objectives {
		if len(sections) == maxObjectiveSections {
			break
		}
		obj = strings.TrimSpace(obj)
		if obj == "" {
			continue
		}

		qTypes := []string{
			string(types.QuestionSingleChoice),
			string(types.QuestionRating),
			string(types.QuestionOpenText),
		}
		lower := strings.ToLower(obj)
		if usesNPS && (strings.Contains(lower, "recommend") || strings.Contains(lower, "loyal")) {
			qTypes = []string{
				string(types.QuestionNPS),
				string(types.QuestionRating),
				string(types.QuestionOpenText),
			}
		}
		sections = append(sections, types.SectionPlan{
			Title:         sectionTitle(obj),
			Focus:         obj,
			QuestionTypes: qTypes,
		})
	}

	if len(sections) == 0 {
		topic := strings.TrimSpace(profile.Topic)
		if topic == "" {
			topic = "the requested subject"
		}
		sections = append(sections, types.SectionPlan{
			Title: sectionTitle(topic),
			Focus: "overall experience and expectations around " + topic,
			QuestionTypes: []string{
				string(types.QuestionSingleChoice),
				string(types.QuestionMultipleChoice),
				string(types.QuestionRating),
				string(types.QuestionOpenText),
			},
		})
	}
	return sections
}

// sectionTitle turns free text into a short section heading.
func sectionTitle(text string) string {
	text = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(text), "."))
	if text == "" {
		return "General"
	}
	runes := []rune(text)
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	if len(runes) > 60 {
		return strings.TrimSpace(string(runes[:57])) + "..."
	}
	return string(runes)
}

// distributeQuestions spreads the target count across sections: a fixed
// small allocation to the demographics section, the rest split evenly with
// the remainder going to the earliest sections.
func distributeQuestions(sections []types.SectionPlan, target int, withDemographics bool) {
	if len(sections) == 0 {
		return
	}

	core := sections
	remaining := target
	if withDemographics {
		demo := 2
		if target >= 12 {
			demo = 3
		}
		sections[len(sections)-1].QuestionCount = demo
		core = sections[:len(sections)-1]
		remaining = target - demo
	}
	if len(core) == 0 {
		return
	}

	per := remaining / len(core)
	extra := remaining % len(core)
	for i := range core {
		core[i].QuestionCount = per
		if i < extra {
			core[i].QuestionCount++
		}
		if core[i].QuestionCount < 1 {
			core[i].QuestionCount = 1
		}
	}
}

func planRationale(profile *types.RFQProfile, matches []types.Match, target int, feedback []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Derived from RFQ topic %q with %d stated objectives and %d golden examples; targeting %d questions.",
		profile.Topic, len(profile.Objectives), len(matches), target)
	if len(feedback) > 0 {
		b.WriteString(" Revised after reviewer feedback: ")
		b.WriteString(strings.Join(feedback, "; "))
		b.WriteString(".")
	}
	return b.String()
}

// renderPlanDraft formats the plan as the text a reviewer sees and may edit.
// Whatever this function (or the reviewer) produces is what the generation
// prompt carries forward verbatim.
func renderPlanDraft(plan *types.MethodologyPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Survey plan: %s, %d questions across %d sections.\n",
		plan.Approach, plan.TargetQuestions, len(plan.Sections))
	fmt.Fprintf(&b, "Methodologies: %s.\n\n", strings.Join(plan.Methodologies, ", "))
	for i, s := range plan.Sections {
		fmt.Fprintf(&b, "%d. %s (%d questions; %s)\n", i+1, s.Title, s.QuestionCount, strings.Join(s.QuestionTypes, ", "))
		fmt.Fprintf(&b, "   Focus: %s\n", s.Focus)
	}
	fmt.Fprintf(&b, "\nRationale: %s\n", plan.Rationale)
	return b.String()
}

// buildGenerationPrompt assembles the question-generation prompt from the
// reviewed plan draft, the RFQ profile, and the retrieved examples. With no
// examples above threshold the generic template is used instead.
func buildGenerationPrompt(profile *types.RFQProfile, planDraft string, matches []types.Match, feedback []string) (string, error) {
	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode RFQ profile: %w", err)
	}

	planBlock := strings.TrimSpace(planDraft)
	if len(feedback) > 0 {
		planBlock += "\n\nReviewer feedback to honor:\n"
		for _, f := range feedback {
			planBlock += "- " + f + "\n"
		}
	}

	if len(matches) == 0 {
		template := prompts.MustGet("generation.json", "survey-generation-no-examples")
		return prompts.Format(template, map[string]string{
			"RFQProfile": string(profileJSON),
			"Plan":       planBlock,
		}), nil
	}

	var examples strings.Builder
	for i, m := range matches {
		if i == maxPromptExamples {
			break
		}
		surveyJSON, err := json.MarshalIndent(m.Example.Survey, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to encode golden example %s: %w", m.Example.ID, err)
		}
		fmt.Fprintf(&examples, "### Example %d (similarity %.2f)\nRFQ:\n%s\n\nSurvey JSON:\n%s\n\n",
			i+1, m.Similarity, strings.TrimSpace(m.Example.RFQText), surveyJSON)
	}

	template := prompts.MustGet("generation.json", "survey-generation")
	return prompts.Format(template, map[string]string{
		"RFQProfile": string(profileJSON),
		"Plan":       planBlock,
		"Examples":   strings.TrimSpace(examples.String()),
	}), nil
}
