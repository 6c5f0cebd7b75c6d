package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Scraper ScraperConfig `yaml:"scraper" mapstructure:"scraper"`
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Auth    AuthConfig    `yaml:"auth" mapstructure:"auth"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver              string  `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL         string  `yaml:"database_url" mapstructure:"database_url"`
	MaxConns            int32   `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns            int32   `yaml:"min_conns" mapstructure:"min_conns"`
	VectorDimension     int     `yaml:"vector_dimension" mapstructure:"vector_dimension"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	EnableVectorSearch  bool    `yaml:"enable_vector_search" mapstructure:"enable_vector_search"`
}

// AuthConfig configures edge authentication.
type AuthConfig struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
}

// ScraperConfig configures the external LinkedIn-scraping workflow provider.
type ScraperConfig struct {
	ProfileURL             string  `yaml:"profile_url" mapstructure:"profile_url"`
	CompanyURL             string  `yaml:"company_url" mapstructure:"company_url"`
	TimeoutSeconds         int     `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	MaxRetries             int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffFactor          float64 `yaml:"backoff_factor" mapstructure:"backoff_factor"`
	RateLimitPerMinute     int     `yaml:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	EnableCompanyIngestion bool    `yaml:"enable_company_ingestion" mapstructure:"enable_company_ingestion"`
	HealthCacheSeconds     int     `yaml:"health_cache_seconds" mapstructure:"health_cache_seconds"`
}

// LLMConfig configures the scoring engine's LLM usage.
type LLMConfig struct {
	APIKey              string `yaml:"api_key" mapstructure:"api_key"`
	DefaultModel        string `yaml:"default_model" mapstructure:"default_model"`
	Stage2Model         string `yaml:"stage2_model" mapstructure:"stage2_model"`
	Stage3Model         string `yaml:"stage3_model" mapstructure:"stage3_model"`
	MaxRetries          int    `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseSeconds    int    `yaml:"retry_base_seconds" mapstructure:"retry_base_seconds"`
	RetryCapSeconds     int    `yaml:"retry_cap_seconds" mapstructure:"retry_cap_seconds"`
	CallTimeoutSeconds  int    `yaml:"call_timeout_seconds" mapstructure:"call_timeout_seconds"`
	EnableAsyncWorkers  bool   `yaml:"enable_async_processing" mapstructure:"enable_async_processing"`
	WorkerCount         int    `yaml:"worker_count" mapstructure:"worker_count"`
	JobQueueCapacity    int    `yaml:"job_queue_capacity" mapstructure:"job_queue_capacity"`
}

// ServerConfig configures the REST API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields based on run mode.
// Supported modes: "serve", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Auth.APIKey == "" {
			errs = append(errs, "auth.api_key is required")
		}
		if c.LLM.APIKey == "" {
			errs = append(errs, "llm.api_key is required")
		}
		if c.Scraper.ProfileURL == "" {
			errs = append(errs, "scraper.profile_url is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "migrate":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Scraper.MaxRetries < 0 {
		errs = append(errs, "scraper.max_retries must be >= 0")
	}
	if c.LLM.MaxRetries < 0 || c.LLM.MaxRetries > 10 {
		errs = append(errs, "llm.max_retries must be between 0 and 10")
	}
	if c.Store.VectorDimension <= 0 {
		errs = append(errs, "store.vector_dimension must be > 0")
	}
	if c.Store.SimilarityThreshold < 0 || c.Store.SimilarityThreshold > 1 {
		errs = append(errs, "store.similarity_threshold must be between 0.0 and 1.0")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("INGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("store.vector_dimension", 1536)
	v.SetDefault("store.similarity_threshold", 0.8)
	v.SetDefault("store.enable_vector_search", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 8080)

	v.SetDefault("scraper.timeout_seconds", 300)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.backoff_factor", 2.0)
	v.SetDefault("scraper.rate_limit_per_minute", 10)
	v.SetDefault("scraper.enable_company_ingestion", true)
	v.SetDefault("scraper.health_cache_seconds", 30)

	v.SetDefault("llm.default_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.stage2_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.stage3_model", "claude-opus-4-1-20250805")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_base_seconds", 1)
	v.SetDefault("llm.retry_cap_seconds", 60)
	v.SetDefault("llm.call_timeout_seconds", 120)
	v.SetDefault("llm.enable_async_processing", true)
	v.SetDefault("llm.worker_count", 4)
	v.SetDefault("llm.job_queue_capacity", 256)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
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
