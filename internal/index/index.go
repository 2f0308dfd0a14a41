// Package index adapts the PostgreSQL retrieval index for the query
// pipeline. The dense arm runs a pgvector cosine search, the text arm a
// tsvector full-text search; both read the same chunks table. Document
// upserts are owned by the ingestion pipeline, which bumps the
// collection version tag on every mutation — this package only reads.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrUnknownCollection indicates the collection has no row in the
// collections table (never created, or dropped by re-ingestion).
var ErrUnknownCollection = errors.New("unknown collection")

// Hit is one ranked result from a single search arm.
type Hit struct {
	DocID    string
	ChunkID  string
	Content  string
	Score    float64
	Metadata map[string]string
}

// Store executes searches against the PostgreSQL index.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Store on an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const vectorSearchSQL = `
SELECT doc_id, chunk_id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM chunks
WHERE collection = $2
ORDER BY embedding <=> $1, doc_id, chunk_id
LIMIT $3`

// VectorSearch returns the k nearest chunks to vec by cosine distance.
// Scores are cosine similarities in [-1,1], descending.
func (s *Store) VectorSearch(ctx context.Context, vec []float32, k int, collection string) ([]Hit, error) {
	rows, err := s.pool.Query(ctx, vectorSearchSQL, pgvector.NewVector(vec), collection, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return s.scanHits(rows)
}

const textSearchSQL = `
SELECT doc_id, chunk_id, content, metadata, ts_rank_cd(tsv, query) AS score
FROM chunks, websearch_to_tsquery('english', $1) query
WHERE collection = $2 AND tsv @@ query
ORDER BY score DESC, doc_id, chunk_id
LIMIT $3`

// TextSearch returns the k best full-text matches for query, ranked by
// ts_rank_cd. An empty result set is not an error.
func (s *Store) TextSearch(ctx context.Context, query string, k int, collection string) ([]Hit, error) {
	rows, err := s.pool.Query(ctx, textSearchSQL, query, collection, k)
	if err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	defer rows.Close()

	return s.scanHits(rows)
}

// CurrentVersion reads the collection's version tag. The ingestion
// pipeline bumps it on every document mutation; the answer cache
// compares it at lookup time.
func (s *Store) CurrentVersion(ctx context.Context, collection string) (int64, error) {
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT version FROM collections WHERE name = $1`, collection,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollection, collection)
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection version: %w", err)
	}
	return version, nil
}

func (s *Store) scanHits(rows pgx.Rows) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var (
			h   Hit
			raw []byte
		)
		if err := rows.Scan(&h.DocID, &h.ChunkID, &h.Content, &raw, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		h.Metadata = s.parseMetadata(h.DocID, h.ChunkID, raw)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search rows: %w", err)
	}
	return hits, nil
}

// parseMetadata validates JSONB payloads at the retrieval boundary.
// Only string and numeric scalar values are accepted; numbers are
// rendered canonically. Anything else is dropped with a warning.
func (s *Store) parseMetadata(docID, chunkID string, raw []byte) map[string]string {
	if len(raw) == 0 {
		return map[string]string{}
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		s.logger.Warn("malformed chunk metadata",
			"doc_id", docID, "chunk_id", chunkID, "error", err)
		return map[string]string{}
	}

	meta := make(map[string]string, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			meta[key] = v
		case float64:
			meta[key] = strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			meta[key] = v.String()
		default:
			s.logger.Warn("dropping non-scalar metadata value",
				"doc_id", docID, "chunk_id", chunkID, "key", key)
		}
	}
	return meta
}
