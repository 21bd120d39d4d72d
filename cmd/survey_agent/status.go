package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var statusCommand = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show where a run is in the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatusCmd,
}

var statusTransitions bool

func init() {
	statusCommand.Flags().BoolVar(&statusTransitions, "transitions", false, "List every recorded transition for the run")

	rootCmd.AddCommand(statusCommand)
}

func runStatusCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.LoadRun(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Run:      %s\n", run.ID)
	fmt.Fprintf(os.Stdout, "Step:     %s\n", run.Step)
	fmt.Fprintf(os.Stdout, "Status:   %s\n", run.Status)
	fmt.Fprintf(os.Stdout, "Progress: %d%%\n", run.MaxPercent)
	if run.FailureReason != "" {
		fmt.Fprintf(os.Stdout, "Failure:  %s\n", run.FailureReason)
	}
	fmt.Fprintf(os.Stdout, "Updated:  %s\n", run.UpdatedAt.Format(time.RFC3339))

	if !statusTransitions {
		return nil
	}

	transitions, err := st.ListTransitions(ctx, runID)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "\n Seq  Pct  Status            Transition")
	for _, tr := range transitions {
		label := string(tr.To)
		if tr.From != tr.To {
			label = fmt.Sprintf("%s -> %s", tr.From, tr.To)
		}
		fmt.Fprintf(os.Stdout, "%4d  %3d  %-17s %s", tr.Seq, tr.Percent, tr.Status, label)
		if tr.Note != "" {
			fmt.Fprintf(os.Stdout, "  (%s)", tr.Note)
		}
		fmt.Fprintln(os.Stdout)
	}
	return nil
}
