package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete configuration for this module, pruned from the
// teacher's server/database/NATS surface down to SPEC_FULL.md §6's option
// table: model backend, search provider credentials, and the pipeline's own
// knobs.
type Config struct {
	Model struct {
		Provider    string  `mapstructure:"provider" validate:"oneof=openai claude gemini"`
		APIKey      string  `mapstructure:"api_key" validate:"required"`
		BaseURL     string  `mapstructure:"base_url"`
		ModelName   string  `mapstructure:"model_name" validate:"required"`
		Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
		MaxTokens   int     `mapstructure:"max_tokens" validate:"min=1"`
	} `mapstructure:"model"`

	Search struct {
		Name         string `mapstructure:"name"`
		BaseURL      string `mapstructure:"base_url" validate:"required"`
		APIKey       string `mapstructure:"api_key"`
		MaxCalls     int    `mapstructure:"max_calls"`
		DefaultMax   int    `mapstructure:"default_max_results" validate:"min=1,max=200"`
		RatePerSec   float64 `mapstructure:"rate_per_second" validate:"min=0.01"`
		MaxRetries   int    `mapstructure:"max_retries" validate:"min=0"`
	} `mapstructure:"search"`

	Domain string `mapstructure:"domain"`

	Scorer struct {
		BatchSize      int `mapstructure:"batch_size" validate:"min=1"`
		MaxConcurrency int `mapstructure:"max_concurrency" validate:"min=1"`
	} `mapstructure:"scorer"`

	Dedup struct {
		LLMEnabled       bool `mapstructure:"llm_enabled"`
		LLMMaxCandidates int  `mapstructure:"llm_max_candidates" validate:"min=0"`
	} `mapstructure:"dedup"`

	Organizer struct {
		MinRelevance float64 `mapstructure:"min_relevance" validate:"min=0,max=1"`
	} `mapstructure:"organizer"`

	Session struct {
		DecideTimeoutSeconds int `mapstructure:"decide_timeout_seconds" validate:"min=1"`
		PollIntervalSeconds  int `mapstructure:"poll_interval_seconds" validate:"min=1"`
		ResultPayloadMaxPapers int `mapstructure:"result_payload_max_papers" validate:"min=1"`
	} `mapstructure:"session"`

	Workflow struct {
		MaxIterations            int  `mapstructure:"max_iterations" validate:"min=1"`
		StrategyCheckpointEnabled bool `mapstructure:"strategy_checkpoint_enabled"`
	} `mapstructure:"workflow"`

	Logging struct {
		Level     string `mapstructure:"level" validate:"oneof=debug info warn error"`
		Format    string `mapstructure:"format" validate:"oneof=json text"`
		AddSource bool   `mapstructure:"add_source"`
		Output    string `mapstructure:"output" validate:"oneof=stdout stderr file"`
		FilePath  string `mapstructure:"file_path"`
	} `mapstructure:"logging"`
}

// LoadConfig loads configuration from environment variables (prefix
// SCIFIND_) and an optional ./config.yaml, following the teacher's own
// viper bring-up sequence.
func LoadConfig() (*Config, error) {
	return LoadConfigFromPath("config.yaml")
}

// LoadConfigFromPath loads configuration from a specific file path, which
// may not exist — a missing config file is not an error, matching the
// teacher's graceful-degradation idiom.
func LoadConfigFromPath(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SCIFIND")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("model.provider", "openai")
	viper.SetDefault("model.temperature", 0)
	viper.SetDefault("model.max_tokens", 2048)

	viper.SetDefault("search.name", "default")
	viper.SetDefault("search.default_max_results", 50)
	viper.SetDefault("search.rate_per_second", 1.0)
	viper.SetDefault("search.max_retries", 3)

	viper.SetDefault("scorer.batch_size", 10)
	viper.SetDefault("scorer.max_concurrency", 3)

	viper.SetDefault("dedup.llm_enabled", false)
	viper.SetDefault("dedup.llm_max_candidates", 50)

	viper.SetDefault("organizer.min_relevance", 0.3)

	viper.SetDefault("session.decide_timeout_seconds", 30)
	viper.SetDefault("session.poll_interval_seconds", 1)
	viper.SetDefault("session.result_payload_max_papers", 30)

	viper.SetDefault("workflow.max_iterations", 5)
	viper.SetDefault("workflow.strategy_checkpoint_enabled", true)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("logging.output", "stdout")
}
