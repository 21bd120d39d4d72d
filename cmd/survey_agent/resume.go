package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nvasquez/survey-generator/internal/pipeline"
	"github.com/nvasquez/survey-generator/internal/types"
)

var resumeCommand = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Supply a review decision to a suspended run",
	Long: `Resumes a run suspended at the human review gate. Approve continues to
question generation, reject sends the run back to planning with your
feedback, and edit replaces the plan with the contents of a file.`,
	Args: cobra.ExactArgs(1),
	RunE: resumeRunCmd,
}

var (
	resumeApprove  bool
	resumeReject   bool
	resumeEditFile string
	resumeFeedback string
	resumeOut      string
)

func init() {
	resumeCommand.Flags().BoolVar(&resumeApprove, "approve", false, "Approve the methodology plan as drafted")
	resumeCommand.Flags().BoolVar(&resumeReject, "reject", false, "Reject the plan and send the run back to planning (pair with --feedback)")
	resumeCommand.Flags().StringVar(&resumeEditFile, "edit-file", "", "Replace the plan with the contents of this file")
	resumeCommand.Flags().StringVar(&resumeFeedback, "feedback", "", "Reviewer feedback recorded with the decision")
	resumeCommand.Flags().StringVarP(&resumeOut, "out", "o", "", "Write the completed survey JSON to this file instead of stdout")

	rootCmd.AddCommand(resumeCommand)
}

func resumeRunCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	decision, err := resumeDecision()
	if err != nil {
		return err
	}

	a, err := buildAgent(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.engine.Resume(ctx, runID, decision)
	if err != nil {
		return fmt.Errorf("failed to resume run %s: %w", runID, err)
	}
	if run.Status == pipeline.StatusRunning {
		run, err = a.engine.Run(ctx, runID)
		if err != nil {
			return fmt.Errorf("run %s failed: %w", runID, err)
		}
	}

	// A reject within bounds replans and suspends at the gate again.
	if run.Status == pipeline.StatusAwaitingReview {
		printReviewInstructions(run)
		return nil
	}

	return reportRun(run, resumeOut)
}

func resumeDecision() (types.ReviewDecision, error) {
	set := 0
	if resumeApprove {
		set++
	}
	if resumeReject {
		set++
	}
	if resumeEditFile != "" {
		set++
	}
	if set == 0 {
		return types.ReviewDecision{}, fmt.Errorf("one of --approve, --reject, or --edit-file is required")
	}
	if set > 1 {
		return types.ReviewDecision{}, fmt.Errorf("--approve, --reject, and --edit-file are mutually exclusive; provide only one")
	}

	switch {
	case resumeApprove:
		return types.ReviewDecision{Decision: types.DecisionApprove, Feedback: resumeFeedback}, nil

	case resumeReject:
		return types.ReviewDecision{Decision: types.DecisionReject, Feedback: resumeFeedback}, nil

	default:
		content, err := os.ReadFile(resumeEditFile)
		if err != nil {
			return types.ReviewDecision{}, fmt.Errorf("failed to read edited plan: %w", err)
		}
		edited := strings.TrimSpace(string(content))
		if edited == "" {
			return types.ReviewDecision{}, fmt.Errorf("edited plan file %s is empty", resumeEditFile)
		}
		return types.ReviewDecision{
			Decision:      types.DecisionEdit,
			EditedContent: edited,
			Feedback:      resumeFeedback,
		}, nil
	}
}
