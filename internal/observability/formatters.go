// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/nvasquez/survey-generator/internal/scoring"
	"github.com/nvasquez/survey-generator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRFQProfile outputs a human-readable summary of the parsed RFQ.
func (p *Printer) PrintRFQProfile(profile *types.RFQProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Topic:    %s\n", profile.Topic))
	if profile.Audience != "" {
		sb.WriteString(fmt.Sprintf("Audience: %s\n", profile.Audience))
	}
	if profile.TargetQuestionCount > 0 {
		sb.WriteString(fmt.Sprintf("Target:   %d questions\n", profile.TargetQuestionCount))
	}
	if profile.Tone != "" {
		sb.WriteString(fmt.Sprintf("Tone:     %s\n", profile.Tone))
	}
	sb.WriteString("\n")

	if len(profile.Objectives) > 0 {
		sb.WriteString("Objectives:\n")
		count := min(len(profile.Objectives), maxItemsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", profile.Objectives[i]))
		}
		if len(profile.Objectives) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(profile.Objectives)-maxItemsToShow))
		}
		sb.WriteString("\n")
	}

	if len(profile.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		count := min(len(profile.Constraints), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", profile.Constraints[i]))
		}
		if len(profile.Constraints) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(profile.Constraints)-3))
		}
	}

	p.printBox("PARSED RFQ PROFILE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintMatches outputs the retrieved golden examples with their similarity.
func (p *Printer) PrintMatches(matches []types.Match) {
	if len(matches) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Retrieved %d golden examples:\n\n", len(matches)))

	count := min(len(matches), maxItemsToShow)
	for i := 0; i < count; i++ {
		m := matches[i]
		title := ""
		if m.Example != nil {
			title = m.Example.Survey.Title
		}
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		sb.WriteString(fmt.Sprintf("#%d  %s\n", i+1, title))
		sb.WriteString(fmt.Sprintf("    Similarity: %.3f\n", m.Similarity))
		if i < count-1 {
			sb.WriteString("\n")
		}
	}

	if len(matches) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("\n... and %d more examples", len(matches)-maxItemsToShow))
	}

	p.printBox("GOLDEN EXAMPLE MATCHES", sb.String())
}

// PrintPlan outputs the methodology plan shown at the review gate.
func (p *Printer) PrintPlan(plan *types.MethodologyPlan) {
	if plan.IsEmpty() {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Approach: %s\n", plan.Approach))
	if len(plan.Methodologies) > 0 {
		sb.WriteString(fmt.Sprintf("Methods:  %s\n", strings.Join(plan.Methodologies, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Budget:   %d questions\n\n", plan.TargetQuestions))

	sb.WriteString("Sections:\n")
	count := min(len(plan.Sections), maxItemsToShow)
	for i := 0; i < count; i++ {
		s := plan.Sections[i]
		sb.WriteString(fmt.Sprintf("  %d. %s (%d questions)\n", i+1, s.Title, s.QuestionCount))
		if s.Focus != "" {
			focus := s.Focus
			if len(focus) > 45 {
				focus = focus[:42] + "..."
			}
			sb.WriteString(fmt.Sprintf("     %s\n", focus))
		}
	}
	if len(plan.Sections) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more sections\n", len(plan.Sections)-maxItemsToShow))
	}

	p.printBox("METHODOLOGY PLAN", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSurvey outputs the generated survey structure.
func (p *Printer) PrintSurvey(doc *types.SurveyDocument, confidence types.Confidence, strategy string) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Title:      %s\n", doc.Title))
	sb.WriteString(fmt.Sprintf("Questions:  %d in %d sections\n", doc.QuestionCount(), len(doc.Sections)))
	if confidence != "" {
		sb.WriteString(fmt.Sprintf("Extraction: %s", confidence))
		if strategy != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", strategy))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	for i, section := range doc.Sections {
		if i >= maxItemsToShow {
			sb.WriteString(fmt.Sprintf("... and %d more sections\n", len(doc.Sections)-maxItemsToShow))
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%d questions)\n", i+1, section.Title, len(section.Questions)))
		if len(section.Questions) > 0 {
			text := section.Questions[0].Text
			if len(text) > 45 {
				text = text[:42] + "..."
			}
			sb.WriteString(fmt.Sprintf("   e.g. %s\n", text))
		}
	}

	p.printBox("GENERATED SURVEY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintScore outputs the composite score with its pillar breakdown.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintScore(score *scoring.CompositeScore) {
	if score == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Composite: %.2f\n", score.Composite))
	sb.WriteString(fmt.Sprintf("Method:    %s", score.Method))
	if score.Degraded {
		sb.WriteString(" (degraded)")
	}
	sb.WriteString("\n")
	if score.PenaltyApplied {
		sb.WriteString("Penalty:   salvaged extraction\n")
	}
	sb.WriteString("\n")

	for _, pillar := range score.Pillars {
		bar := strings.Repeat("█", int(pillar.Score*10+0.5))
		sb.WriteString(fmt.Sprintf("%-22s %.2f %s\n", pillar.Pillar, pillar.Score, bar))
	}

	p.printBox("SURVEY QUALITY SCORE", strings.TrimSuffix(sb.String(), "\n"))
}
