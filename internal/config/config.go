// Package config provides configuration loading and validation for the CLI.
// Configuration comes from a YAML file merged over defaults, with SURVEY_
// environment variables taking precedence over both.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFileName is the config file looked up when no explicit path is given.
const DefaultFileName = "survey-agent"

// Config is the full agent configuration.
type Config struct {
	// APIKey authenticates against the Gemini API. Usually supplied via
	// SURVEY_API_KEY or GEMINI_API_KEY rather than the file.
	APIKey string `mapstructure:"api_key"`

	// DatabaseURL is the PostgreSQL connection string. Empty runs the agent
	// against in-memory storage only.
	DatabaseURL string `mapstructure:"database_url"`

	Models   ModelsConfig   `mapstructure:"models"`
	Matching MatchingConfig `mapstructure:"matching"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Intake   IntakeConfig   `mapstructure:"intake"`

	Verbose bool `mapstructure:"verbose"`
}

// ModelsConfig selects provider models per tier.
type ModelsConfig struct {
	Lite            string  `mapstructure:"lite"`
	Standard        string  `mapstructure:"standard"`
	Advanced        string  `mapstructure:"advanced"`
	Embedding       string  `mapstructure:"embedding"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
}

// MatchingConfig tunes golden example retrieval.
type MatchingConfig struct {
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity float64 `mapstructure:"min_similarity"`
}

// PipelineConfig tunes workflow behavior.
type PipelineConfig struct {
	MaxPlanRejections int           `mapstructure:"max_plan_rejections"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	AutoApprove       bool          `mapstructure:"auto_approve"`
}

// ScoringConfig points at an optional rule-set override.
type ScoringConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// IntakeConfig tunes RFQ fetching.
type IntakeConfig struct {
	UseBrowser bool          `mapstructure:"use_browser"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from the given path, or from ./survey-agent.yaml
// and ./config/survey-agent.yaml when path is empty. A missing default file
// is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(DefaultFileName)
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("SURVEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// GEMINI_API_KEY and DATABASE_URL remain honored without the SURVEY_
	// prefix for parity with the provider docs and the usual Postgres
	// convention.
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys must be registered for SURVEY_ env overrides to bind.
	v.SetDefault("api_key", "")
	v.SetDefault("database_url", "")
	v.SetDefault("scoring.rules_file", "")
	v.SetDefault("models.lite", "gemini-2.5-flash-lite")
	v.SetDefault("models.standard", "gemini-2.5-flash")
	v.SetDefault("models.advanced", "gemini-2.5-pro")
	v.SetDefault("models.embedding", "text-embedding-004")
	v.SetDefault("models.temperature", 0.1)
	v.SetDefault("models.max_output_tokens", 8192)
	v.SetDefault("matching.top_k", 3)
	v.SetDefault("matching.min_similarity", 0.35)
	v.SetDefault("pipeline.max_plan_rejections", 2)
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.retry_base_delay", "500ms")
	v.SetDefault("pipeline.auto_approve", false)
	v.SetDefault("intake.use_browser", false)
	v.SetDefault("intake.timeout", "30s")
	v.SetDefault("verbose", false)
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Matching.TopK < 1 {
		return fmt.Errorf("config error: 'matching.top_k' must be at least 1")
	}
	if c.Matching.MinSimilarity < 0 || c.Matching.MinSimilarity > 1 {
		return fmt.Errorf("config error: 'matching.min_similarity' must be between 0 and 1")
	}
	if c.Pipeline.MaxPlanRejections < 0 {
		return fmt.Errorf("config error: 'pipeline.max_plan_rejections' must be non-negative")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("config error: 'pipeline.max_attempts' must be at least 1")
	}
	if c.Pipeline.RetryBaseDelay < 0 {
		return fmt.Errorf("config error: 'pipeline.retry_base_delay' must be non-negative")
	}
	if c.Models.Temperature < 0 || c.Models.Temperature > 2 {
		return fmt.Errorf("config error: 'models.temperature' must be between 0 and 2")
	}
	if c.Scoring.RulesFile != "" {
		if _, err := os.Stat(c.Scoring.RulesFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: rules file not found: %s", c.Scoring.RulesFile)
		}
	}
	return nil
}
