package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/embedding"
	"github.com/nvasquez/survey-generator/internal/schemas"
	"github.com/nvasquez/survey-generator/internal/types"
)

var seedCommand = &cobra.Command{
	Use:   "seed <file-or-dir> [more...]",
	Short: "Load golden examples into the retrieval index",
	Long: `Validates golden example seed files, embeds their RFQ text, and inserts
them into the database. Directories expand to their *.json files. Example
ids derive from the RFQ text, so reseeding the same files is a no-op.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSeedCmd,
}

// seedNamespace makes example ids a pure function of RFQ text.
var seedNamespace = uuid.MustParse("c2c9a386-3f54-4a77-8616-42aac490fb2b")

func init() {
	rootCmd.AddCommand(seedCommand)
}

func runSeedCmd(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.APIKey == "" {
		return fmt.Errorf("no API key configured: set GEMINI_API_KEY or api_key in the config file")
	}

	paths, err := expandSeedPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no seed files found")
	}

	for _, path := range paths {
		if err := schemas.ValidateGoldenExampleFile(path); err != nil {
			return err
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Models.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = embedder.Close() }()

	examples := make([]types.GoldenExample, 0, len(paths))
	for _, path := range paths {
		ex, err := loadSeedExample(ctx, embedder, path)
		if err != nil {
			return err
		}
		examples = append(examples, *ex)
		logger.Debug("seed file embedded", zap.String("path", path), zap.String("id", ex.ID.String()))
	}

	inserted, err := st.Examples().AddBatch(ctx, examples)
	if err != nil {
		return fmt.Errorf("failed to seed examples: %w", err)
	}

	fmt.Fprintf(os.Stdout, "Seeded %d new examples (%d already present)\n", inserted, len(examples)-inserted)
	return nil
}

func expandSeedPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.json"))
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

func loadSeedExample(ctx context.Context, embedder *embedding.GeminiEmbedder, path string) (*types.GoldenExample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var seed struct {
		RFQText string               `json:"rfq_text"`
		Survey  types.SurveyDocument `json:"survey"`
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	vector, err := embedder.Embed(ctx, seed.RFQText)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", path, err)
	}

	return &types.GoldenExample{
		ID:        uuid.NewSHA1(seedNamespace, []byte(seed.RFQText)),
		RFQText:   seed.RFQText,
		Survey:    seed.Survey,
		Embedding: vector,
	}, nil
}
