// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DOCQA_ prefix, runtime override)
//  2. Config file (~/.docqa/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model, token limits
//   - Retrieval: per-arm fan-out, fusion weight, context budget, deadlines
//   - Cache: backend selection, TTL, Redis connection
//   - Session: history cap, idle timeout, sweep interval
//   - Storage: PostgreSQL connection for the retrieval index
//   - Server: listen address, rate limiting
//
// Error Handling: sentinel errors checked with errors.Is, wrapped with
// fmt.Errorf("%w: details", ErrXxx). Validation is fail-fast at Load.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// Cache backend identifiers used in Config.CacheBackend.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config stores application configuration.
// SENSITIVE fields (passwords) must never be logged verbatim; use
// String(), which masks them.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider"`       // "ollama" (default) or "googleai"
	ModelName     string `mapstructure:"model_name"`     // e.g. "llama3.1", "gemini-2.5-flash"
	EmbedderModel string `mapstructure:"embedder_model"` // e.g. "nomic-embed-text"
	MaxTokens     int    `mapstructure:"max_tokens"`     // generation token cap
	OllamaHost    string `mapstructure:"ollama_host"`

	// Retrieval configuration
	Collection       string        `mapstructure:"collection"`        // retrieval collection name
	DenseTopK        int           `mapstructure:"dense_top_k"`       // dense arm fan-out
	TextTopK         int           `mapstructure:"text_top_k"`        // full-text arm fan-out
	TopK             int           `mapstructure:"top_k"`             // final fused result count
	Alpha            float64       `mapstructure:"alpha"`             // fusion weight for the dense arm
	ContextBudget    int           `mapstructure:"context_budget"`    // prompt context budget, characters
	RetrievalTimeout time.Duration `mapstructure:"retrieval_timeout"` // per search deadline

	// Generation configuration
	GenerationTimeout time.Duration `mapstructure:"generation_timeout"`

	// Session configuration
	HistoryTurnCap int           `mapstructure:"history_turn_cap"` // turns kept per session
	HistoryTurns   int           `mapstructure:"history_turns"`    // turns included in the prompt
	SessionTimeout time.Duration `mapstructure:"session_timeout"`  // idle expiry
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`   // expiry sweep period

	// Answer cache configuration
	CacheBackend  string        `mapstructure:"cache_backend"` // "redis" or "memory"
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"` // SENSITIVE
	RedisDB       int           `mapstructure:"redis_db"`

	// Storage configuration (retrieval index)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"` // SENSITIVE
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr string  `mapstructure:"listen_addr"`
	RateLimit  float64 `mapstructure:"rate_limit"` // requests per second per client IP
	RateBurst  int     `mapstructure:"rate_burst"`
	TrustProxy bool    `mapstructure:"trust_proxy"` // trust X-Real-IP/X-Forwarded-For
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docqa")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// AI defaults
	v.SetDefault("provider", ProviderOllama)
	v.SetDefault("model_name", "llama3.1")
	v.SetDefault("embedder_model", "nomic-embed-text")
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	v.SetDefault("collection", "documents")
	v.SetDefault("dense_top_k", 20)
	v.SetDefault("text_top_k", 20)
	v.SetDefault("top_k", 8)
	v.SetDefault("alpha", 0.5)
	v.SetDefault("context_budget", 6000)
	v.SetDefault("retrieval_timeout", "10s")

	// Generation defaults
	v.SetDefault("generation_timeout", "120s")

	// Session defaults
	v.SetDefault("history_turn_cap", 8)
	v.SetDefault("history_turns", 4)
	v.SetDefault("session_timeout", "30m")
	v.SetDefault("sweep_interval", "1m")

	// Cache defaults
	v.SetDefault("cache_backend", CacheBackendRedis)
	v.SetDefault("cache_ttl", "30m")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docqa")
	v.SetDefault("postgres_password", "docqa_dev_password")
	v.SetDefault("postgres_db_name", "docqa")
	v.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 20)
	v.SetDefault("trust_proxy", false)
}

// PostgresURL returns the postgres:// connection URL for pgx and
// golang-migrate. The password is URL-escaped.
func (c *Config) PostgresURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.PostgresUser),
		url.QueryEscape(c.PostgresPassword),
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "ollama/llama3.1", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return c.Provider + "/" + c.ModelName
}

// FullEmbedderName returns the provider-qualified embedder name for Genkit.
func (c *Config) FullEmbedderName() string {
	if strings.Contains(c.EmbedderModel, "/") {
		return c.EmbedderModel
	}
	return c.Provider + "/" + c.EmbedderModel
}

// String implements Stringer, masking sensitive fields so the config can
// be logged at startup.
func (c Config) String() string {
	type alias Config // drops the String method, avoiding recursion
	masked := alias(c)
	masked.PostgresPassword = maskSecret(c.PostgresPassword)
	masked.RedisPassword = maskSecret(c.RedisPassword)
	return fmt.Sprintf("%+v", masked)
}

// maskSecret masks a secret for safe logging. Short secrets are fully
// masked; longer ones keep the first and last two characters for debug
// utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:2] + "<********>" + s[len(s)-2:]
}
