// Package app wires the application together: database pool, Genkit
// provider plugins, answer cache backend, retrieval, sessions, and the
// answering service. Setup builds the container, Close releases it.
package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nstepanov/docqa/internal/answer"
	"github.com/nstepanov/docqa/internal/answercache"
	"github.com/nstepanov/docqa/internal/config"
	"github.com/nstepanov/docqa/internal/index"
	"github.com/nstepanov/docqa/internal/retrieval"
	"github.com/nstepanov/docqa/internal/session"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Redis    *redis.Client // nil with the memory cache backend
	Index    *index.Store
	Cache    answercache.Cache
	Sessions *session.Manager
	Retrieve *retrieval.Retriever
	Service  *answer.Service
}

// Close releases held resources. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("closing redis client", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
}
