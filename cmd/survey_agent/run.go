package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nvasquez/survey-generator/internal/intake"
	"github.com/nvasquez/survey-generator/internal/observability"
	"github.com/nvasquez/survey-generator/internal/pipeline"
	"github.com/nvasquez/survey-generator/internal/types"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the survey generation pipeline on one RFQ",
	Long: `Carries an RFQ through the full pipeline: parsing -> embedding -> golden
example retrieval -> methodology planning -> human review -> question
generation -> extraction -> validation -> scoring.

The pipeline suspends at the review gate unless --auto-approve is set. With
--review the plan is reviewed interactively at the terminal; otherwise the
run stays suspended and can be resumed later with the resume command.`,
	RunE: runPipelineCmd,
}

var (
	runRFQPath     string
	runRFQURL      string
	runRFQText     string
	runOut         string
	runAutoApprove bool
	runReview      bool
	runUseBrowser  bool
)

func init() {
	runCommand.Flags().StringVarP(&runRFQPath, "rfq", "f", "", "Path to an RFQ text file (mutually exclusive with --rfq-url and --rfq-text)")
	runCommand.Flags().StringVar(&runRFQURL, "rfq-url", "", "URL to fetch the RFQ from (mutually exclusive with --rfq and --rfq-text)")
	runCommand.Flags().StringVar(&runRFQText, "rfq-text", "", "Inline RFQ text (mutually exclusive with --rfq and --rfq-url)")
	runCommand.Flags().StringVarP(&runOut, "out", "o", "", "Write the completed survey JSON to this file instead of stdout")
	runCommand.Flags().BoolVar(&runAutoApprove, "auto-approve", false, "Approve the methodology plan without human review")
	runCommand.Flags().BoolVar(&runReview, "review", false, "Review the methodology plan interactively at the terminal")
	runCommand.Flags().BoolVar(&runUseBrowser, "use-browser", false, "Render script-heavy RFQ portals with a headless browser (requires Chrome)")

	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	sources := 0
	for _, s := range []string{runRFQPath, runRFQURL, runRFQText} {
		if s != "" {
			sources++
		}
	}
	if sources == 0 {
		return fmt.Errorf("one of --rfq, --rfq-url, or --rfq-text is required")
	}
	if sources > 1 {
		return fmt.Errorf("--rfq, --rfq-url, and --rfq-text are mutually exclusive; provide only one")
	}
	if runAutoApprove && runReview {
		return fmt.Errorf("--auto-approve and --review are mutually exclusive")
	}

	autoApprove := runAutoApprove || (cfg.Pipeline.AutoApprove && !runReview)
	if cfg.DatabaseURL == "" && !autoApprove && !runReview {
		// A suspended in-memory run cannot be resumed by a later process.
		logger.Warn("no database configured, switching to interactive review so the suspended run is not stranded")
		runReview = true
	}

	doc, err := acquireRFQ(ctx)
	if err != nil {
		return err
	}

	a, err := buildAgent(ctx, autoApprove)
	if err != nil {
		return err
	}
	defer a.Close()

	runID, err := a.engine.Start(ctx, doc.Text, doc.Source)
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Run %s started (%d words from %s)\n", runID, doc.Words, doc.Source)

	run, err := a.engine.Run(ctx, runID)
	if err != nil {
		return fmt.Errorf("run %s failed: %w", runID, err)
	}

	for run.Status == pipeline.StatusAwaitingReview {
		if !runReview {
			printReviewInstructions(run)
			return nil
		}
		decision, err := promptReviewDecision(run)
		if err != nil {
			return err
		}
		run, err = a.engine.Resume(ctx, runID, decision)
		if err != nil {
			return fmt.Errorf("failed to resume run %s: %w", runID, err)
		}
		if run.Status == pipeline.StatusRunning {
			run, err = a.engine.Run(ctx, runID)
			if err != nil {
				return fmt.Errorf("run %s failed: %w", runID, err)
			}
		}
	}

	return reportRun(run, runOut)
}

func acquireRFQ(ctx context.Context) (*intake.Document, error) {
	in := intake.New(intake.Options{
		Timeout:    cfg.Intake.Timeout,
		UseBrowser: cfg.Intake.UseBrowser || runUseBrowser,
	}, logger)

	switch {
	case runRFQPath != "":
		return in.FromFile(runRFQPath)
	case runRFQURL != "":
		return in.FromURL(ctx, runRFQURL)
	default:
		return in.FromString(runRFQText, "")
	}
}

// promptReviewDecision shows the draft plan and reads a decision from stdin.
// It keeps prompting until it has a valid decision.
func promptReviewDecision(run *pipeline.WorkflowRun) (types.ReviewDecision, error) {
	fmt.Fprintln(os.Stdout, "\n--- Methodology plan awaiting review ---")
	fmt.Fprintln(os.Stdout, run.Artifacts.PlanDraft)
	fmt.Fprintln(os.Stdout, "----------------------------------------")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "Decision [approve/reject/edit]: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return types.ReviewDecision{}, fmt.Errorf("failed to read decision: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case types.DecisionApprove, "a":
			return types.ReviewDecision{Decision: types.DecisionApprove}, nil

		case types.DecisionReject, "r":
			fmt.Fprint(os.Stdout, "Feedback for the planner: ")
			feedback, err := reader.ReadString('\n')
			if err != nil {
				return types.ReviewDecision{}, fmt.Errorf("failed to read feedback: %w", err)
			}
			return types.ReviewDecision{
				Decision: types.DecisionReject,
				Feedback: strings.TrimSpace(feedback),
			}, nil

		case types.DecisionEdit, "e":
			fmt.Fprintln(os.Stdout, "Enter the edited plan, finish with a line containing only '.':")
			var b strings.Builder
			for {
				planLine, err := reader.ReadString('\n')
				if err != nil {
					return types.ReviewDecision{}, fmt.Errorf("failed to read edited plan: %w", err)
				}
				if strings.TrimSpace(planLine) == "." {
					break
				}
				b.WriteString(planLine)
			}
			edited := strings.TrimSpace(b.String())
			if edited == "" {
				fmt.Fprintln(os.Stdout, "Edited plan cannot be empty.")
				continue
			}
			return types.ReviewDecision{Decision: types.DecisionEdit, EditedContent: edited}, nil

		default:
			fmt.Fprintln(os.Stdout, "Unrecognized decision; enter approve, reject, or edit.")
		}
	}
}

func printReviewInstructions(run *pipeline.WorkflowRun) {
	fmt.Fprintf(os.Stdout, "\nRun %s is awaiting plan review.\n", run.ID)
	fmt.Fprintln(os.Stdout, "\n--- Methodology plan ---")
	fmt.Fprintln(os.Stdout, run.Artifacts.PlanDraft)
	fmt.Fprintln(os.Stdout, "------------------------")
	fmt.Fprintln(os.Stdout, "\nResume with one of:")
	fmt.Fprintf(os.Stdout, "  survey_agent resume %s --approve\n", run.ID)
	fmt.Fprintf(os.Stdout, "  survey_agent resume %s --reject --feedback \"what to change\"\n", run.ID)
	fmt.Fprintf(os.Stdout, "  survey_agent resume %s --edit-file plan.txt\n", run.ID)
}

// reportRun prints the outcome of a finished run and writes the survey.
func reportRun(run *pipeline.WorkflowRun, outPath string) error {
	switch run.Status {
	case pipeline.StatusCompleted:
		fmt.Fprintf(os.Stdout, "\nRun %s completed.\n", run.ID)
		if cfg.Verbose {
			printer := observability.NewPrinter(os.Stdout)
			printer.PrintRFQProfile(run.Artifacts.Profile)
			printer.PrintMatches(run.Artifacts.Matches)
			printer.PrintPlan(run.Artifacts.Plan)
			printer.PrintSurvey(run.Artifacts.Survey, run.Artifacts.Confidence, run.Artifacts.Strategy)
			printer.PrintScore(run.Artifacts.Score)
		} else {
			printScore(run)
		}
		return writeSurvey(run, outPath)
	case pipeline.StatusCancelled:
		return fmt.Errorf("run %s was cancelled", run.ID)
	case pipeline.StatusFailed:
		return fmt.Errorf("run %s failed: %s", run.ID, run.FailureReason)
	default:
		return fmt.Errorf("run %s stopped in unexpected state %s/%s", run.ID, run.Step, run.Status)
	}
}

func printScore(run *pipeline.WorkflowRun) {
	score := run.Artifacts.Score
	if score == nil {
		return
	}

	fmt.Fprintf(os.Stdout, "Composite score: %.2f (%s", score.Composite, score.Method)
	if score.Degraded {
		fmt.Fprint(os.Stdout, ", degraded")
	}
	if score.PenaltyApplied {
		fmt.Fprint(os.Stdout, ", salvage penalty applied")
	}
	fmt.Fprintln(os.Stdout, ")")

	for _, p := range score.Pillars {
		fmt.Fprintf(os.Stdout, "  %-22s %.2f (weight %.2f)\n", p.Pillar, p.Score, p.Weight)
	}
	if score.Summary != "" {
		fmt.Fprintf(os.Stdout, "Summary: %s\n", score.Summary)
	}
}

func writeSurvey(run *pipeline.WorkflowRun, outPath string) error {
	data, err := json.MarshalIndent(run.Artifacts.Survey, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode survey: %w", err)
	}

	if outPath == "" {
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write survey to %s: %w", outPath, err)
	}
	fmt.Fprintf(os.Stdout, "Survey written to %s\n", outPath)
	return nil
}
