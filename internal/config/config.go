// Package config provides configuration management for the publication
// aggregation engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/helixir/publication-aggregator/internal/scoring"
)

// Cache backend names.
const (
	// CacheBackendMemory selects the in-process cache.
	CacheBackendMemory = "memory"
	// CacheBackendRedis selects the Redis cache.
	CacheBackendRedis = "redis"
)

// Config holds all configuration for the aggregation engine.
type Config struct {
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Cache contains metadata cache settings.
	Cache CacheConfig `mapstructure:"cache"`
	// Sources contains publication source API configurations.
	Sources SourcesConfig `mapstructure:"sources"`
	// Scoring contains relevance scoring settings.
	Scoring ScoringConfig `mapstructure:"scoring"`
	// Dedup contains identity resolution settings.
	Dedup DedupConfig `mapstructure:"dedup"`
	// Aggregator contains coordinator settings.
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`
	// Namespace is the prefix for all metric names.
	Namespace string `mapstructure:"namespace"`
}

// CacheConfig holds metadata cache configuration.
type CacheConfig struct {
	// Backend selects the cache implementation (memory, redis).
	Backend string `mapstructure:"backend"`
	// SearchTTL is how long cached search pages stay live.
	SearchTTL time.Duration `mapstructure:"search_ttl"`
	// RecordTTL is how long cached individual records stay live.
	RecordTTL time.Duration `mapstructure:"record_ttl"`
	// SweepInterval is the optional background sweep period for the memory
	// backend. Zero disables the sweeper; lazy eviction still applies.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Redis contains Redis connection settings, used when Backend is "redis".
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addrs is the list of Redis node addresses.
	Addrs []string `mapstructure:"addrs"`
	// Username is the Redis username.
	Username string `mapstructure:"username"`
	// Password is the Redis password, loaded exclusively from the environment.
	Password string `mapstructure:"-"`
	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// SourcesConfig holds per-source API configurations.
type SourcesConfig struct {
	// PubMed configures the NCBI E-utilities client.
	PubMed SourceConfig `mapstructure:"pubmed"`
	// SemanticScholar configures the Semantic Scholar Graph API client.
	SemanticScholar SourceConfig `mapstructure:"semantic_scholar"`
}

// SourceConfig holds the settings shared by all source clients.
type SourceConfig struct {
	// Enabled toggles the source. Disabled sources are never instantiated.
	Enabled bool `mapstructure:"enabled"`
	// BaseURL overrides the source's default API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is loaded exclusively from the environment.
	APIKey string `mapstructure:"-"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxResults is the per-search result limit.
	MaxResults int `mapstructure:"max_results"`
}

// ScoringConfig holds relevance scoring configuration.
type ScoringConfig struct {
	// Weights are the blend weights for the scoring components.
	Weights scoring.Weights `mapstructure:"weights"`
	// HalfLifeYears is the recency decay half-life in years.
	HalfLifeYears float64 `mapstructure:"half_life_years"`
	// CitationCap is the citation count where the citation score saturates.
	CitationCap int `mapstructure:"citation_cap"`
}

// DedupConfig holds identity resolution configuration.
type DedupConfig struct {
	// TitleThreshold is the fuzzy title similarity threshold in (0,1].
	TitleThreshold float64 `mapstructure:"title_threshold"`
	// SourcePriority orders sources from most to least authoritative.
	SourcePriority []string `mapstructure:"source_priority"`
}

// AggregatorConfig holds coordinator configuration.
type AggregatorConfig struct {
	// MaxConcurrency bounds concurrent source fetches.
	MaxConcurrency int64 `mapstructure:"max_concurrency"`
	// SourceTimeout is the per-source fetch timeout.
	SourceTimeout time.Duration `mapstructure:"source_timeout"`
	// MaxResults is the default result set size.
	MaxResults int `mapstructure:"max_results"`
	// DefaultDeadline is the overall aggregation deadline when the caller
	// does not supply one.
	DefaultDeadline time.Duration `mapstructure:"default_deadline"`
}

// Load reads configuration from defaults, an optional YAML config file, and
// PUBAGG_-prefixed environment variables, then validates it.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("PUBAGG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/publication-aggregator")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Sources.PubMed.APIKey = os.Getenv("PUBAGG_SOURCES_PUBMED_API_KEY")
	cfg.Sources.SemanticScholar.APIKey = os.Getenv("PUBAGG_SOURCES_SEMANTIC_SCHOLAR_API_KEY")
	cfg.Cache.Redis.Password = os.Getenv("PUBAGG_CACHE_REDIS_PASSWORD")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "pubagg")

	// Cache defaults
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.search_ttl", "15m")
	v.SetDefault("cache.record_ttl", "24h")
	v.SetDefault("cache.sweep_interval", "0")
	v.SetDefault("cache.redis.addrs", []string{"localhost:6379"})
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.db", 0)

	// Source defaults. PubMed allows 3 req/s without an API key.
	v.SetDefault("sources.pubmed.enabled", true)
	v.SetDefault("sources.pubmed.rate_limit", 3.0)
	v.SetDefault("sources.pubmed.burst_size", 3)
	v.SetDefault("sources.pubmed.timeout", "30s")
	v.SetDefault("sources.pubmed.max_results", 100)
	v.SetDefault("sources.semantic_scholar.enabled", true)
	v.SetDefault("sources.semantic_scholar.rate_limit", 10.0)
	v.SetDefault("sources.semantic_scholar.burst_size", 10)
	v.SetDefault("sources.semantic_scholar.timeout", "30s")
	v.SetDefault("sources.semantic_scholar.max_results", 100)

	// Scoring defaults
	v.SetDefault("scoring.weights.title", 0.35)
	v.SetDefault("scoring.weights.abstract", 0.15)
	v.SetDefault("scoring.weights.recency", 0.20)
	v.SetDefault("scoring.weights.citations", 0.20)
	v.SetDefault("scoring.weights.semantic", 0.10)
	v.SetDefault("scoring.half_life_years", 5.0)
	v.SetDefault("scoring.citation_cap", 1000)

	// Dedup defaults
	v.SetDefault("dedup.title_threshold", 0.90)
	v.SetDefault("dedup.source_priority", []string{"pubmed", "scholar"})

	// Aggregator defaults
	v.SetDefault("aggregator.max_concurrency", 10)
	v.SetDefault("aggregator.source_timeout", "15s")
	v.SetDefault("aggregator.max_results", 20)
	v.SetDefault("aggregator.default_deadline", "30s")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if len(c.Cache.Redis.Addrs) == 0 {
			return fmt.Errorf("cache backend %q requires at least one redis address", c.Cache.Backend)
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.SearchTTL <= 0 {
		return fmt.Errorf("cache search_ttl must be positive")
	}
	if c.Cache.RecordTTL <= 0 {
		return fmt.Errorf("cache record_ttl must be positive")
	}

	if !c.Sources.PubMed.Enabled && !c.Sources.SemanticScholar.Enabled {
		return fmt.Errorf("at least one source must be enabled")
	}
	if c.Sources.PubMed.Enabled && c.Sources.PubMed.RateLimit <= 0 {
		return fmt.Errorf("pubmed rate_limit must be positive")
	}
	if c.Sources.SemanticScholar.Enabled && c.Sources.SemanticScholar.RateLimit <= 0 {
		return fmt.Errorf("semantic_scholar rate_limit must be positive")
	}

	if err := c.Scoring.Weights.Validate(); err != nil {
		return fmt.Errorf("scoring weights: %w", err)
	}
	if c.Scoring.HalfLifeYears <= 0 {
		return fmt.Errorf("scoring half_life_years must be positive")
	}
	if c.Scoring.CitationCap <= 0 {
		return fmt.Errorf("scoring citation_cap must be positive")
	}

	if c.Dedup.TitleThreshold <= 0 || c.Dedup.TitleThreshold > 1 {
		return fmt.Errorf("dedup title_threshold must be in (0,1], got %v", c.Dedup.TitleThreshold)
	}

	if c.Aggregator.MaxConcurrency <= 0 {
		return fmt.Errorf("aggregator max_concurrency must be positive")
	}
	if c.Aggregator.SourceTimeout <= 0 {
		return fmt.Errorf("aggregator source_timeout must be positive")
	}
	if c.Aggregator.MaxResults <= 0 {
		return fmt.Errorf("aggregator max_results must be positive")
	}

	return nil
}
