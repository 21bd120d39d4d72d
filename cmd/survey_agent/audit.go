package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var auditCommand = &cobra.Command{
	Use:   "audit <run-id>",
	Short: "List the LLM interactions recorded for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditCmd,
}

var auditFull bool

func init() {
	auditCommand.Flags().BoolVar(&auditFull, "full", false, "Print the full prompt and response of every record")

	rootCmd.AddCommand(auditCommand)
}

func runAuditCmd(_ *cobra.Command, args []string) error {
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

	records, err := st.AuditLog().ListByRun(ctx, runID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(os.Stdout, "No audit records for run %s\n", runID)
		return nil
	}

	fmt.Fprintln(os.Stdout, " Seq  OK  Latency    Tokens in/out  Model                      Purpose")
	for _, rec := range records {
		ok := "y"
		if !rec.Success {
			ok = "n"
		}
		purpose := rec.Purpose
		if rec.SubPurpose != "" {
			purpose = fmt.Sprintf("%s/%s", rec.Purpose, rec.SubPurpose)
		}
		fmt.Fprintf(os.Stdout, "%4d  %-2s  %6dms  %6d/%-6d  %-25s  %s\n",
			rec.Seq, ok, rec.LatencyMs, rec.InputTokens, rec.OutputTokens, rec.ModelID, purpose)
	}

	if !auditFull {
		return nil
	}

	for _, rec := range records {
		fmt.Fprintf(os.Stdout, "\n=== record %d (%s) ===\n", rec.Seq, rec.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(os.Stdout, "--- prompt ---")
		fmt.Fprintln(os.Stdout, rec.Prompt)
		fmt.Fprintln(os.Stdout, "--- response ---")
		fmt.Fprintln(os.Stdout, rec.Response)
	}
	return nil
}
