package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/idea-pipeline/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Dispatch   DispatchConfig   `yaml:"dispatch" mapstructure:"dispatch"`
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SearchConfig holds web search API settings for the research phase.
type SearchConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	EngineID string `yaml:"engine_id" mapstructure:"engine_id"`
}

// DispatchConfig holds the downstream notification webhook.
type DispatchConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// GenerationConfig configures the fallback orchestrator and research phase.
type GenerationConfig struct {
	// CandidatesFile optionally points at a YAML file with the ordered
	// backend candidate list; when empty, Candidates from this config is used.
	CandidatesFile    string                   `yaml:"candidates_file" mapstructure:"candidates_file"`
	Candidates        []model.BackendCandidate `yaml:"candidates" mapstructure:"candidates"`
	RequestsPerMinute float64                  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	ResearchQueries   []string                 `yaml:"research_queries" mapstructure:"research_queries"`
}

// ServerConfig configures the job trigger server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// SchedulerHeader is the header name the scheduler sets on job requests
	// (any non-empty value passes). Secret is an alternative bearer token.
	// With neither configured the endpoint is open.
	SchedulerHeader string `yaml:"scheduler_header" mapstructure:"scheduler_header"`
	Secret          string `yaml:"secret" mapstructure:"secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IDEA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.scheduler_header", "X-Scheduler-Job")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("generation.requests_per_minute", 0)
	v.SetDefault("generation.research_queries", []string{
		"emerging business opportunities %s",
		"underserved market niches %s",
		"trending consumer problems %s",
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if len(cfg.Generation.Candidates) == 0 {
		cfg.Generation.Candidates = DefaultCandidates()
	}

	return &cfg, nil
}

// DefaultCandidates is the fallback backend order used when none is configured.
func DefaultCandidates() []model.BackendCandidate {
	return []model.BackendCandidate{
		{Label: "claude-sonnet", Backend: "anthropic", Model: "claude-sonnet-4-5-20250929", TokenBudget: 8192},
		{Label: "claude-haiku", Backend: "anthropic", Model: "claude-haiku-4-5-20251001", TokenBudget: 8192},
		{Label: "sonar-pro", Backend: "perplexity", Model: "sonar-pro", TokenBudget: 4096},
	}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
