package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nvasquez/survey-generator/internal/intake"
	"github.com/nvasquez/survey-generator/internal/pipeline"
)

var batchCommand = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Run the pipeline over a directory of RFQ files",
	Long: `Processes every .txt and .md file in a directory as an independent run,
up to --concurrency at a time. Methodology plans are auto-approved; use the
single-run command when a plan needs human review.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatchCmd,
}

var (
	batchConcurrency int
	batchOutDir      string
)

func init() {
	batchCommand.Flags().IntVar(&batchConcurrency, "concurrency", 3, "Number of RFQs processed in parallel")
	batchCommand.Flags().StringVar(&batchOutDir, "out-dir", "", "Write each completed survey to <out-dir>/<rfq-name>.json")

	rootCmd.AddCommand(batchCommand)
}

type batchResult struct {
	Path  string
	RunID uuid.UUID
	Score float64
	Err   error
}

func runBatchCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	paths, err := listRFQFiles(args[0])
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no .txt or .md RFQ files in %s", args[0])
	}

	if batchOutDir != "" {
		if err := os.MkdirAll(batchOutDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", batchOutDir, err)
		}
	}

	a, err := buildAgent(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	in := intake.New(intake.Options{Timeout: cfg.Intake.Timeout}, logger)

	results := make([]batchResult, len(paths))
	var g errgroup.Group
	g.SetLimit(batchConcurrency)
	for i, path := range paths {
		g.Go(func() error {
			results[i] = processBatchFile(ctx, a, in, path)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(os.Stdout, "FAIL  %-40s %v\n", filepath.Base(res.Path), res.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "OK    %-40s run %s  score %.2f\n", filepath.Base(res.Path), res.RunID, res.Score)
	}
	fmt.Fprintf(os.Stdout, "\n%d of %d RFQs completed\n", len(results)-failed, len(results))

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

func processBatchFile(ctx context.Context, a *agent, in *intake.Intake, path string) batchResult {
	res := batchResult{Path: path}

	doc, err := in.FromFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	runID, err := a.engine.Start(ctx, doc.Text, doc.Source)
	if err != nil {
		res.Err = err
		return res
	}
	res.RunID = runID

	run, err := a.engine.Run(ctx, runID)
	if err != nil {
		res.Err = err
		return res
	}
	if run.Status != pipeline.StatusCompleted {
		res.Err = fmt.Errorf("run ended %s: %s", run.Status, run.FailureReason)
		return res
	}
	if run.Artifacts.Score != nil {
		res.Score = run.Artifacts.Score.Composite
	}

	if batchOutDir != "" {
		data, err := json.MarshalIndent(run.Artifacts.Survey, "", "  ")
		if err != nil {
			res.Err = fmt.Errorf("failed to encode survey: %w", err)
			return res
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".json"
		out := filepath.Join(batchOutDir, name)
		if err := os.WriteFile(out, append(data, '\n'), 0o644); err != nil {
			res.Err = fmt.Errorf("failed to write %s: %w", out, err)
			return res
		}
	}
	return res
}

func listRFQFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
