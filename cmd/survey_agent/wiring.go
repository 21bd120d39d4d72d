package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nvasquez/survey-generator/internal/audit"
	"github.com/nvasquez/survey-generator/internal/embedding"
	"github.com/nvasquez/survey-generator/internal/llm"
	"github.com/nvasquez/survey-generator/internal/matching"
	"github.com/nvasquez/survey-generator/internal/pipeline"
	"github.com/nvasquez/survey-generator/internal/scoring"
	"github.com/nvasquez/survey-generator/internal/store"
)

// agent bundles the collaborators one command invocation drives.
type agent struct {
	engine   *pipeline.Engine
	store    *store.Store // nil when running in-memory
	client   llm.Client
	embedder *embedding.GeminiEmbedder
}

// Close releases the provider clients and the database pool.
func (a *agent) Close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// buildAgent wires the full pipeline from config. With a database URL the run
// store, audit log, and example index live in Postgres; without one everything
// is held in memory and the retrieval index starts empty.
func buildAgent(ctx context.Context, autoApprove bool) (*agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured: set GEMINI_API_KEY or api_key in the config file")
	}

	modelCfg := llm.DefaultGeminiConfig()
	if cfg.Models.Lite != "" {
		modelCfg = modelCfg.WithModel(llm.TierLite, cfg.Models.Lite)
	}
	if cfg.Models.Standard != "" {
		modelCfg = modelCfg.WithModel(llm.TierStandard, cfg.Models.Standard)
	}
	if cfg.Models.Advanced != "" {
		modelCfg = modelCfg.WithModel(llm.TierAdvanced, cfg.Models.Advanced)
	}
	if cfg.Models.Temperature > 0 {
		modelCfg.Temperature = cfg.Models.Temperature
	}
	if cfg.Models.MaxOutputTokens > 0 {
		modelCfg.MaxOutputTokens = cfg.Models.MaxOutputTokens
	}

	client, err := llm.NewClient(ctx, modelCfg, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	embedder, err := embedding.NewGeminiEmbedder(ctx, cfg.APIKey, cfg.Models.Embedding)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	a := &agent{client: client, embedder: embedder}

	rules, err := loadScoringRules()
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		runStore pipeline.Store
		recorder audit.Recorder
		index    matching.VectorIndex
		examples matching.ExampleSource
	)
	if cfg.DatabaseURL != "" {
		pg, err := store.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = pg
		if err := pg.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		runStore = pg
		recorder = pg.AuditLog()
		ex := pg.Examples()
		index, examples = ex, ex
	} else {
		logger.Warn("no database configured, storage is in-memory and the retrieval index is empty")
		runStore = pipeline.NewMemoryStore()
		recorder = audit.NewMemoryLog()
		mem := matching.NewMemoryIndex()
		index, examples = mem, mem
	}

	engine, err := pipeline.NewEngine(pipeline.Deps{
		Store:    runStore,
		LLM:      client,
		Embedder: embedder,
		Matcher:  matching.NewMatcher(index, examples, logger),
		Scorer:   scoring.NewEngine(client, rules, recorder, logger),
		Recorder: recorder,
		Logger:   logger,
	}, pipeline.Options{
		TopK:              cfg.Matching.TopK,
		MinSimilarity:     cfg.Matching.MinSimilarity,
		MaxPlanRejections: cfg.Pipeline.MaxPlanRejections,
		MaxAttempts:       cfg.Pipeline.MaxAttempts,
		RetryBaseDelay:    cfg.Pipeline.RetryBaseDelay,
		AutoApprove:       autoApprove,
		OnProgress:        logProgress,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine

	return a, nil
}

func loadScoringRules() (*scoring.RuleSet, error) {
	if cfg.Scoring.RulesFile != "" {
		return scoring.LoadFile(cfg.Scoring.RulesFile)
	}
	return scoring.LoadDefault()
}

func logProgress(ev pipeline.ProgressEvent) {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID.String()),
		zap.String("step", string(ev.Step)),
		zap.Int("percent", ev.Percent),
		zap.String("status", string(ev.Status)),
	}
	if ev.Message != "" {
		fields = append(fields, zap.String("message", ev.Message))
	}
	logger.Info("pipeline progress", fields...)
}

// openStore connects to Postgres for commands that inspect past runs.
// In-memory runs do not outlive their process, so these commands require a
// database.
func openStore(ctx context.Context) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured: set DATABASE_URL to inspect past runs")
	}
	return store.Connect(ctx, cfg.DatabaseURL, logger)
}
