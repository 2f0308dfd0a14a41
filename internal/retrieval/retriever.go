// Package retrieval implements hybrid search over the retrieval index:
// a dense-vector arm and a full-text arm issued concurrently, fused
// into one deterministic ranking.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nstepanov/docqa/internal/index"
	"github.com/nstepanov/docqa/internal/llm"
)

// ErrRetrievalFailed indicates both search arms failed; no results are
// available and generation must not be attempted.
var ErrRetrievalFailed = errors.New("retrieval failed")

// Index is the consumer-side view of the retrieval index. *index.Store
// implements it; tests substitute fakes.
type Index interface {
	VectorSearch(ctx context.Context, vec []float32, k int, collection string) ([]index.Hit, error)
	TextSearch(ctx context.Context, query string, k int, collection string) ([]index.Hit, error)
}

// Arm source labels recorded on fused chunks.
const (
	SourceDense = "dense"
	SourceText  = "text"
	SourceBoth  = "both"
)

// Chunk is one fused retrieval result. DenseScore and TextScore are the
// raw arm scores (zero when the arm did not return the chunk);
// FusedScore combines the min-max-normalized arm scores. Source records
// which arm(s) returned the chunk.
type Chunk struct {
	DocID      string
	ChunkID    string
	Content    string
	Metadata   map[string]string
	Source     string
	DenseScore float64
	TextScore  float64
	FusedScore float64
	Rank       int
}

// ID returns the combined document+chunk identifier used for
// deduplication, citations, and deterministic tie-breaking.
func (c Chunk) ID() string { return c.DocID + "#" + c.ChunkID }

// Result is the outcome of one hybrid search. Partial is set when one
// arm failed and the ranking was built from the surviving arm alone.
type Result struct {
	Chunks  []Chunk
	Partial bool
}

// Config holds the retriever's tuning knobs.
type Config struct {
	Collection string
	DenseTopK  int           // dense arm fan-out
	TextTopK   int           // text arm fan-out
	Alpha      float64       // dense weight in fusion, [0,1]
	Timeout    time.Duration // deadline covering both arms
	Backoff    time.Duration // wait before the single retry of a failed arm
}

// Retriever issues both search arms and fuses their results.
type Retriever struct {
	index    Index
	embedder llm.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a Retriever.
func New(idx Index, embedder llm.Embedder, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 200 * time.Millisecond
	}
	return &Retriever{index: idx, embedder: embedder, cfg: cfg, logger: logger}
}

// armResult carries one arm's outcome through the fan-in channel.
type armResult struct {
	arm  string
	hits []index.Hit
	err  error
}

// Search runs both arms concurrently and returns the fused top-k
// ranking. If one arm fails the other's results are returned with
// Result.Partial set; if both fail the error wraps ErrRetrievalFailed.
func (r *Retriever) Search(ctx context.Context, query string, topK int) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	results := make(chan armResult, 2)

	go func() {
		hits, err := r.denseArm(ctx, query)
		results <- armResult{arm: "dense", hits: hits, err: err}
	}()
	go func() {
		hits, err := r.withRetry(ctx, func() ([]index.Hit, error) {
			return r.index.TextSearch(ctx, query, r.cfg.TextTopK, r.cfg.Collection)
		})
		results <- armResult{arm: "text", hits: hits, err: err}
	}()

	var dense, text []index.Hit
	var denseErr, textErr error
	for i := 0; i < 2; i++ {
		res := <-results
		switch res.arm {
		case "dense":
			dense, denseErr = res.hits, res.err
		case "text":
			text, textErr = res.hits, res.err
		}
	}

	if denseErr != nil && textErr != nil {
		return Result{}, fmt.Errorf("%w: dense: %v; text: %v", ErrRetrievalFailed, denseErr, textErr)
	}

	partial := denseErr != nil || textErr != nil
	if denseErr != nil {
		r.logger.Warn("dense arm failed, degrading to text-only results", "error", denseErr)
	}
	if textErr != nil {
		r.logger.Warn("text arm failed, degrading to dense-only results", "error", textErr)
	}

	chunks := fuse(dense, text, r.cfg.Alpha, topK)
	r.logger.Debug("hybrid search complete",
		"dense_hits", len(dense), "text_hits", len(text),
		"fused", len(chunks), "partial", partial)

	return Result{Chunks: chunks, Partial: partial}, nil
}

// denseArm embeds the query and runs the vector search. An embedding
// failure fails the whole arm; it is degraded like an index failure.
func (r *Retriever) denseArm(ctx context.Context, query string) ([]index.Hit, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.withRetry(ctx, func() ([]index.Hit, error) {
		return r.index.VectorSearch(ctx, vec, r.cfg.DenseTopK, r.cfg.Collection)
	})
}

// withRetry retries a failed search once after a backoff. Context
// cancellation is final and is not retried.
func (r *Retriever) withRetry(ctx context.Context, search func() ([]index.Hit, error)) ([]index.Hit, error) {
	hits, err := search()
	if err == nil || ctx.Err() != nil {
		return hits, err
	}

	select {
	case <-ctx.Done():
		return nil, err
	case <-time.After(r.cfg.Backoff):
	}

	hits, retryErr := search()
	if retryErr != nil {
		return nil, fmt.Errorf("after retry: %w", retryErr)
	}
	return hits, nil
}
