package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nstepanov/docqa/db"
	"github.com/nstepanov/docqa/internal/answer"
	"github.com/nstepanov/docqa/internal/answercache"
	"github.com/nstepanov/docqa/internal/config"
	"github.com/nstepanov/docqa/internal/index"
	"github.com/nstepanov/docqa/internal/llm"
	"github.com/nstepanov/docqa/internal/retrieval"
	"github.com/nstepanov/docqa/internal/session"
)

// Setup builds the application container. On failure everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			a.Close()
		}
	}()

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.Index = index.New(pool, logger)

	g, err := provideGenkit(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	cache, rdb, err := provideCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Cache = cache
	a.Redis = rdb

	a.Sessions = session.NewManager(cfg.SessionTimeout, cfg.HistoryTurnCap, logger)

	a.Retrieve = retrieval.New(a.Index, llm.NewGenkitEmbedder(embedder), retrieval.Config{
		Collection: cfg.Collection,
		DenseTopK:  cfg.DenseTopK,
		TextTopK:   cfg.TextTopK,
		Alpha:      cfg.Alpha,
		Timeout:    cfg.RetrievalTimeout,
		Backoff:    500 * time.Millisecond,
	}, logger)

	a.Service = answer.New(
		a.Sessions,
		a.Cache,
		a.Retrieve,
		llm.NewGenkitGenerator(g, cfg.FullModelName()),
		a.Index,
		answer.Config{
			Collection:        cfg.Collection,
			TopK:              cfg.TopK,
			MaxTokens:         cfg.MaxTokens,
			ContextBudget:     cfg.ContextBudget,
			HistoryTurns:      cfg.HistoryTurns,
			CacheTTL:          cfg.CacheTTL,
			GenerationTimeout: cfg.GenerationTimeout,
		},
		logger,
	)

	return a, nil
}

// provideDBPool runs migrations and creates the PostgreSQL pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery).
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		slog.Info("initialized genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		slog.Info("initialized genkit with googleai provider", "model", cfg.ModelName)
		return g, nil

	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// provideEmbedder looks up the embedder registered by the provider
// plugin. Ollama keys embedders by server address, GoogleAI by model.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderGoogleAI:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	default:
		return nil
	}
}

// provideCache builds the answer cache backend. Redis is verified with
// a ping at startup so misconfiguration fails fast rather than turning
// every request into a cache bypass.
func provideCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (answercache.Cache, *redis.Client, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		return answercache.NewMemory(), nil, nil

	case config.CacheBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("pinging redis at %s: %w", cfg.RedisAddr, err)
		}
		return answercache.NewRedis(rdb, logger), rdb, nil

	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.CacheBackend)
	}
}
