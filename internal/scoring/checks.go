package scoring

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nvasquez/survey-generator/internal/types"
)

// Structural checks runnable without an LLM. Every rule in a rule set names
// one of these.
const (
	checkHasTitle             = "has_title"
	checkMinSections          = "min_sections"
	checkQuestionTextLength   = "question_text_length"
	checkChoiceHasOptions     = "choice_has_options"
	checkUniqueQuestionIDs    = "unique_question_ids"
	checkSectionHasQuestions  = "section_has_questions"
	checkTypedQuestions       = "typed_questions"
	checkRequiredFlagPresent  = "required_flag_present"
	checkOptionsNotDuplicated = "options_not_duplicated"
	checkReasonableLength     = "reasonable_length"
)

func knownCheck(name string) bool {
	switch name {
	case checkHasTitle, checkMinSections, checkQuestionTextLength,
		checkChoiceHasOptions, checkUniqueQuestionIDs, checkSectionHasQuestions,
		checkTypedQuestions, checkRequiredFlagPresent, checkOptionsNotDuplicated,
		checkReasonableLength:
		return true
	}
	return false
}

// checkDefaultValue supplies the threshold for value-carrying checks when the
// rule file omits one.
func checkDefaultValue(name string) int {
	switch name {
	case checkMinSections:
		return 1
	case checkQuestionTextLength:
		return 200
	case checkReasonableLength:
		return 40
	default:
		return 0
	}
}

// runCheck executes a structural check against a document. On failure the
// returned note names what was wrong; on success the note is empty.
func runCheck(name string, value int, doc *types.SurveyDocument) (bool, string) {
	switch name {
	case checkHasTitle:
		if strings.TrimSpace(doc.Title) == "" {
			return false, "document title is empty"
		}
		return true, ""

	case checkMinSections:
		if len(doc.Sections) < value {
			return false, fmt.Sprintf("%d sections, need at least %d", len(doc.Sections), value)
		}
		return true, ""

	case checkQuestionTextLength:
		for _, q := range doc.AllQuestions() {
			if n := utf8.RuneCountInString(q.Text); n > value {
				return false, fmt.Sprintf("question %s is %d characters, limit %d", q.ID, n, value)
			}
		}
		return true, ""

	case checkChoiceHasOptions:
		for _, q := range doc.AllQuestions() {
			if q.Type != types.QuestionSingleChoice && q.Type != types.QuestionMultipleChoice {
				continue
			}
			if len(q.Options) < 2 {
				return false, fmt.Sprintf("choice question %s has %d options", q.ID, len(q.Options))
			}
		}
		return true, ""

	case checkUniqueQuestionIDs:
		seen := make(map[string]bool)
		for _, q := range doc.AllQuestions() {
			if seen[q.ID] {
				return false, fmt.Sprintf("duplicate question id %q", q.ID)
			}
			seen[q.ID] = true
		}
		return true, ""

	case checkSectionHasQuestions:
		for i, s := range doc.Sections {
			if len(s.Questions) == 0 {
				return false, fmt.Sprintf("section %d (%q) has no questions", i+1, s.Title)
			}
		}
		return true, ""

	case checkTypedQuestions:
		for _, q := range doc.AllQuestions() {
			switch q.Type {
			case types.QuestionSingleChoice, types.QuestionMultipleChoice,
				types.QuestionOpenText, types.QuestionRating, types.QuestionNPS:
			default:
				return false, fmt.Sprintf("question %s has unrecognized type %q", q.ID, q.Type)
			}
		}
		return true, ""

	case checkRequiredFlagPresent:
		for _, q := range doc.AllQuestions() {
			if q.Required {
				return true, ""
			}
		}
		return false, "no question is marked required"

	case checkOptionsNotDuplicated:
		for _, q := range doc.AllQuestions() {
			seen := make(map[string]bool, len(q.Options))
			for _, opt := range q.Options {
				key := strings.ToLower(strings.TrimSpace(opt))
				if seen[key] {
					return false, fmt.Sprintf("question %s repeats option %q", q.ID, opt)
				}
				seen[key] = true
			}
		}
		return true, ""

	case checkReasonableLength:
		total := doc.QuestionCount()
		if total < 1 {
			return false, "survey has no questions"
		}
		if total > value {
			return false, fmt.Sprintf("%d questions, limit %d", total, value)
		}
		return true, ""
	}

	// Unreachable for validated rule sets.
	return false, fmt.Sprintf("unknown check %q", name)
}
