package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var cancelCommand = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Cancel a run that has not yet finished",
	Args:  cobra.ExactArgs(1),
	RunE:  runCancelCmd,
}

func init() {
	rootCmd.AddCommand(cancelCommand)
}

func runCancelCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	a, err := buildAgent(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Cancel(ctx, runID); err != nil {
		return fmt.Errorf("failed to cancel run %s: %w", runID, err)
	}

	fmt.Fprintf(os.Stdout, "Run %s cancelled\n", runID)
	return nil
}
