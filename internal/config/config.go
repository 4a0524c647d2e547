package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the medsignal server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	AI        AIConfig
	Embedding EmbeddingConfig
	OpenFDA   OpenFDAConfig
	Analysis  AnalysisConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// EmbeddingConfig configures the text encoder. The domain model produces
// Dimension-wide vectors; if it is unavailable the service falls back to
// FallbackModel at FallbackDimension. The semantic cache only accepts
// vectors matching its own declared dimension.
type EmbeddingConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Dimension         int
	FallbackModel     string
	FallbackDimension int
	Timeout           time.Duration
}

type OpenFDAConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AnalysisConfig bounds the correlation engines and the semantic cache.
type AnalysisConfig struct {
	SimilarityThreshold float64
	StorageThreshold    float64
	MinCacheConfidence  float64
	MaxLLMPairs         int
	MinLLMConfidence    float64
	PairCallTimeout     time.Duration
	CleanupAfterDays    int
	CleanupInterval     time.Duration
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns a descriptive error if any required value is missing or
// invalid. Missing LLM credentials are fatal here, never silently degraded.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MEDSIGNAL_PORT", 8080),
			Env:  envString("MEDSIGNAL_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 30*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-mini"),
				BaseURL: os.Getenv("OPENAI_BASE_URL"),
			},
		},
		Embedding: EmbeddingConfig{
			BaseURL:           envString("EMBEDDING_BASE_URL", "https://api.openai.com"),
			APIKey:            os.Getenv("EMBEDDING_API_KEY"),
			Model:             envString("EMBEDDING_MODEL", "medembed-base-v1"),
			Dimension:         envInt("EMBEDDING_DIMENSION", 768),
			FallbackModel:     envString("EMBEDDING_FALLBACK_MODEL", "all-minilm-l6-v2"),
			FallbackDimension: envInt("EMBEDDING_FALLBACK_DIMENSION", 384),
			Timeout:           envDuration("EMBEDDING_TIMEOUT", 10*time.Second),
		},
		OpenFDA: OpenFDAConfig{
			BaseURL: envString("OPENFDA_BASE_URL", "https://api.fda.gov"),
			APIKey:  os.Getenv("OPENFDA_API_KEY"),
			Timeout: envDuration("OPENFDA_TIMEOUT", 4*time.Second),
		},
		Analysis: AnalysisConfig{
			SimilarityThreshold: envFloat("ANALYSIS_SIMILARITY_THRESHOLD", 0.85),
			StorageThreshold:    envFloat("ANALYSIS_STORAGE_THRESHOLD", 0.8),
			MinCacheConfidence:  envFloat("ANALYSIS_MIN_CACHE_CONFIDENCE", 0.8),
			MaxLLMPairs:         envInt("ANALYSIS_MAX_LLM_PAIRS", 6),
			MinLLMConfidence:    envFloat("ANALYSIS_MIN_LLM_CONFIDENCE", 0.6),
			PairCallTimeout:     envDuration("ANALYSIS_PAIR_CALL_TIMEOUT", 4*time.Second),
			CleanupAfterDays:    envInt("ANALYSIS_CLEANUP_AFTER_DAYS", 90),
			CleanupInterval:     envDuration("ANALYSIS_CLEANUP_INTERVAL", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if !strings.HasPrefix(c.Embedding.BaseURL, "http://") && !strings.HasPrefix(c.Embedding.BaseURL, "https://") {
		return fmt.Errorf("EMBEDDING_BASE_URL must start with http:// or https://, got %q", c.Embedding.BaseURL)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.Embedding.Dimension)
	}

	if !strings.HasPrefix(c.OpenFDA.BaseURL, "http://") && !strings.HasPrefix(c.OpenFDA.BaseURL, "https://") {
		return fmt.Errorf("OPENFDA_BASE_URL must start with http:// or https://, got %q", c.OpenFDA.BaseURL)
	}

	if c.Analysis.SimilarityThreshold <= 0 || c.Analysis.SimilarityThreshold > 1 {
		return fmt.Errorf("ANALYSIS_SIMILARITY_THRESHOLD must be in (0, 1], got %v", c.Analysis.SimilarityThreshold)
	}
	if c.Analysis.MaxLLMPairs <= 0 {
		return fmt.Errorf("ANALYSIS_MAX_LLM_PAIRS must be positive, got %d", c.Analysis.MaxLLMPairs)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
