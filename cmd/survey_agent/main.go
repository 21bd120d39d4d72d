// Package main provides the survey_agent command line interface.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nvasquez/survey-generator/internal/config"
)

var (
	cfgPath    string
	cfgVerbose bool
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "survey_agent",
	Short: "Survey generation agent",
	Long: `survey_agent turns free-text RFQs into scored survey instruments.

A run moves through retrieval over vetted golden examples, methodology
planning with a human review gate, LLM question generation with a resilient
extraction cascade, and five-pillar quality scoring. Runs are durable: a run
suspended at the review gate or interrupted mid-flight resumes where it
stopped.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("verbose") {
			loaded.Verbose = cfgVerbose
		}
		cfg = loaded

		logCfg := zap.NewProductionConfig()
		if cfg.Verbose {
			logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = logCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to survey-agent.yaml (default: ./survey-agent.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
