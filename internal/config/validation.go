package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidOllamaHost indicates the Ollama host URL is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidCollection indicates the retrieval collection name is invalid.
	ErrInvalidCollection = errors.New("invalid collection name")

	// ErrInvalidAlpha indicates the fusion weight is out of [0,1].
	ErrInvalidAlpha = errors.New("invalid fusion weight")

	// ErrInvalidTopK indicates a fan-out or result size is out of range.
	ErrInvalidTopK = errors.New("invalid topK")

	// ErrInvalidContextBudget indicates the context budget is out of range.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidTimeout indicates a deadline or TTL is non-positive.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidHistoryCap indicates the history turn cap is out of range.
	ErrInvalidHistoryCap = errors.New("invalid history turn cap")

	// ErrInvalidCacheBackend indicates an unknown cache backend.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresSSLMode indicates an unknown PostgreSQL SSL mode.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidRateLimit indicates a non-positive rate limit.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// topKLimit bounds fan-out sizes to keep index queries cheap.
const topKLimit = 1000

// validSSLModes are the PostgreSQL sslmode values we accept.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
	"prefer":      {},
	"allow":       {},
}

// Validate performs range and consistency checks on the configuration.
// It is called by Load; call it directly when constructing a Config by
// hand (tests, embedding docqa as a library).
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderOllama, ProviderGoogleAI:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidProvider, c.Provider, ProviderOllama, ProviderGoogleAI)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model is empty", ErrInvalidModelName)
	}

	if c.Provider == ProviderOllama {
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidOllamaHost, c.OllamaHost)
		}
	}

	if strings.TrimSpace(c.Collection) == "" {
		return fmt.Errorf("%w: collection name is empty", ErrInvalidCollection)
	}

	if c.Alpha < 0 || c.Alpha > 1 {
		return fmt.Errorf("%w: %g (must be in [0,1])", ErrInvalidAlpha, c.Alpha)
	}

	for name, k := range map[string]int{
		"dense_top_k": c.DenseTopK,
		"text_top_k":  c.TextTopK,
		"top_k":       c.TopK,
	} {
		if k < 1 || k > topKLimit {
			return fmt.Errorf("%w: %s=%d (must be in [1,%d])", ErrInvalidTopK, name, k, topKLimit)
		}
	}

	if c.ContextBudget < 100 {
		return fmt.Errorf("%w: %d (must be >= 100 characters)", ErrInvalidContextBudget, c.ContextBudget)
	}

	for name, d := range map[string]time.Duration{
		"retrieval_timeout":  c.RetrievalTimeout,
		"generation_timeout": c.GenerationTimeout,
		"session_timeout":    c.SessionTimeout,
		"sweep_interval":     c.SweepInterval,
		"cache_ttl":          c.CacheTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidTimeout, name)
		}
	}

	if c.HistoryTurnCap < 1 || c.HistoryTurnCap > 1000 {
		return fmt.Errorf("%w: %d (must be in [1,1000])", ErrInvalidHistoryCap, c.HistoryTurnCap)
	}
	if c.HistoryTurns < 0 || c.HistoryTurns > c.HistoryTurnCap {
		return fmt.Errorf("%w: history_turns=%d exceeds cap %d",
			ErrInvalidHistoryCap, c.HistoryTurns, c.HistoryTurnCap)
	}

	switch c.CacheBackend {
	case CacheBackendRedis, CacheBackendMemory:
	default:
		return fmt.Errorf("%w: %q (must be %q or %q)",
			ErrInvalidCacheBackend, c.CacheBackend, CacheBackendRedis, CacheBackendMemory)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("%w: rate=%g burst=%d", ErrInvalidRateLimit, c.RateLimit, c.RateBurst)
	}

	return nil
}
