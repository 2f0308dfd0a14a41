// Package answer orchestrates a question through the full pipeline:
// session resolution, answer cache lookup, hybrid retrieval, prompt
// assembly, generation, and cache write. Each request walks an explicit
// state machine so the stage a failure occurred in is always known.
package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstepanov/docqa/internal/answercache"
	"github.com/nstepanov/docqa/internal/llm"
	"github.com/nstepanov/docqa/internal/retrieval"
	"github.com/nstepanov/docqa/internal/session"
)

// ErrEmptyQuestion reports a request whose question is empty after
// whitespace normalization.
var ErrEmptyQuestion = errors.New("empty question")

// Searcher is the retrieval contract the service depends on, satisfied
// by *retrieval.Retriever.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) (retrieval.Result, error)
}

// VersionSource reports the current version of a collection, satisfied
// by *index.Store.
type VersionSource interface {
	CurrentVersion(ctx context.Context, collection string) (int64, error)
}

// Request is one question from a client. An empty SessionID starts a
// new session.
type Request struct {
	SessionID string
	Question  string
}

// Result is the outcome of a successfully answered request.
type Result struct {
	Answer         string
	ChunkIDs       []string
	CacheHit       bool
	Partial        bool
	SessionID      string
	RetrievalTime  time.Duration
	GenerationTime time.Duration
}

// Config holds the orchestrator's tuning knobs.
type Config struct {
	Collection        string
	TopK              int
	MaxTokens         int
	ContextBudget     int           // prompt context budget in characters
	HistoryTurns      int           // conversation turns included in the prompt
	CacheTTL          time.Duration
	GenerationTimeout time.Duration
}

// Service answers questions against an indexed document collection.
type Service struct {
	sessions  *session.Manager
	cache     answercache.Cache
	retriever Searcher
	generator llm.Generator
	versions  VersionSource
	cfg       Config
	logger    *slog.Logger
}

// New creates a Service. All dependencies are required.
func New(
	sessions *session.Manager,
	cache answercache.Cache,
	retriever Searcher,
	generator llm.Generator,
	versions VersionSource,
	cfg Config,
	logger *slog.Logger,
) *Service {
	return &Service{
		sessions:  sessions,
		cache:     cache,
		retriever: retriever,
		generator: generator,
		versions:  versions,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ask answers one question. In-flight retrieval, generation, and cache
// writes run on a context detached from the caller's: a client that
// disconnects mid-request does not abandon the work, it only forfeits
// the result. Cache backend failures degrade to misses; generation
// failures are returned to the caller and are never cached.
func (s *Service) Ask(ctx context.Context, req Request) (Result, error) {
	norm := answercache.Normalize(req.Question)
	if norm == "" {
		return Result{}, ErrEmptyQuestion
	}

	m := machine{state: StateReceived}
	workCtx := context.WithoutCancel(ctx)

	sess := s.sessions.Open(req.SessionID)
	m.advance(StateSessionResolved)
	logger := s.logger.With("session_id", sess.ID())

	version, cacheOK := s.currentVersion(workCtx, logger)
	key := answercache.Key(norm, s.sessions.ScopeKey(sess), s.cfg.Collection)

	m.advance(StateCacheCheck)
	if cacheOK {
		entry, err := s.cache.Get(workCtx, key, version)
		switch {
		case err == nil:
			m.advance(StateCacheHit)
			s.sessions.AppendTurn(sess, req.Question, entry.Answer)
			m.advance(StateDone)
			logger.Debug("answer served from cache", "state", m.state)
			return Result{
				Answer:    entry.Answer,
				ChunkIDs:  entry.ChunkIDs,
				CacheHit:  true,
				SessionID: sess.ID(),
			}, nil
		case errors.Is(err, answercache.ErrMiss):
			// fall through to retrieval
		default:
			logger.Warn("cache backend unavailable, bypassing cache", "error", err)
			cacheOK = false
		}
	}

	m.advance(StateRetrieving)
	retrievalStart := time.Now()
	retrieved, err := s.retriever.Search(workCtx, req.Question, s.cfg.TopK)
	retrievalTime := time.Since(retrievalStart)
	if err != nil {
		m.advance(StateFailed)
		logger.Error("retrieval failed", "state", m.state, "error", err)
		return Result{}, fmt.Errorf("answering question: %w", err)
	}

	history := s.sessions.Recent(sess, s.cfg.HistoryTurns)
	prompt, chunkIDs := buildPrompt(req.Question, retrieved.Chunks, history, s.cfg.ContextBudget)
	m.advance(StateContextBuilt)

	m.advance(StateGenerating)
	genCtx, cancel := context.WithTimeout(workCtx, s.cfg.GenerationTimeout)
	defer cancel()
	generationStart := time.Now()
	text, err := s.generator.Generate(genCtx, prompt, s.cfg.MaxTokens)
	generationTime := time.Since(generationStart)
	if err != nil {
		m.advance(StateFailed)
		logger.Error("generation failed", "state", m.state, "error", err)
		return Result{}, fmt.Errorf("answering question: %w", err)
	}

	m.advance(StateCacheWrite)
	if cacheOK {
		entry := answercache.Entry{
			Key:        key,
			Answer:     text,
			ChunkIDs:   chunkIDs,
			Collection: s.cfg.Collection,
			Version:    version,
		}
		if err := s.cache.Put(workCtx, key, entry, s.cfg.CacheTTL); err != nil {
			logger.Warn("cache write failed", "error", err)
		}
	}

	s.sessions.AppendTurn(sess, req.Question, text)
	m.advance(StateDone)
	logger.Debug("answer generated",
		"state", m.state,
		"partial", retrieved.Partial,
		"chunks", len(chunkIDs),
		"retrieval_ms", retrievalTime.Milliseconds(),
		"generation_ms", generationTime.Milliseconds())

	// The work is complete and cached, but a caller that already gave
	// up does not receive the result.
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	return Result{
		Answer:         text,
		ChunkIDs:       chunkIDs,
		Partial:        retrieved.Partial,
		SessionID:      sess.ID(),
		RetrievalTime:  retrievalTime,
		GenerationTime: generationTime,
	}, nil
}

// currentVersion reads the collection version used to tag and validate
// cache entries. A read failure disables the cache for this request
// rather than failing it.
func (s *Service) currentVersion(ctx context.Context, logger *slog.Logger) (int64, bool) {
	version, err := s.versions.CurrentVersion(ctx, s.cfg.Collection)
	if err != nil {
		logger.Warn("collection version unavailable, bypassing cache", "error", err)
		return 0, false
	}
	return version, true
}
