//go:build integration

package index

import (
	"context"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/nstepanov/docqa/internal/log"
	"github.com/nstepanov/docqa/internal/testutil"
)

// unitVec returns a 768-dim unit vector pointing along the given axis.
func unitVec(axis int) []float32 {
	v := make([]float32, 768)
	v[axis] = 1
	return v
}

func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pool := testutil.SetupTestDB(t)
	store := New(pool, log.NewNop())

	_, err := pool.Exec(ctx,
		`INSERT INTO collections (name, version) VALUES ('docs', 3)`)
	require.NoError(t, err)

	chunks := []struct {
		docID   string
		chunkID string
		content string
		vec     []float32
	}{
		{"doc1", "0", "Paris is the capital of France.", unitVec(0)},
		{"doc1", "1", "France borders Spain and Italy.", unitVec(1)},
		{"doc2", "0", "Berlin is the capital of Germany.", unitVec(2)},
	}
	for _, c := range chunks {
		_, err := pool.Exec(ctx,
			`INSERT INTO chunks (collection, doc_id, chunk_id, content, metadata, embedding)
			 VALUES ('docs', $1, $2, $3, '{"source":"test"}', $4)`,
			c.docID, c.chunkID, c.content, pgvector.NewVector(c.vec))
		require.NoError(t, err)
	}

	t.Run("vector search ranks by cosine similarity", func(t *testing.T) {
		hits, err := store.VectorSearch(ctx, unitVec(0), 2, "docs")
		require.NoError(t, err)
		require.Len(t, hits, 2)
		require.Equal(t, "doc1", hits[0].DocID)
		require.Equal(t, "0", hits[0].ChunkID)
		require.InDelta(t, 1.0, hits[0].Score, 1e-6)
		require.Greater(t, hits[0].Score, hits[1].Score)
		require.Equal(t, "test", hits[0].Metadata["source"])
	})

	t.Run("text search matches websearch query", func(t *testing.T) {
		hits, err := store.TextSearch(ctx, "capital France", 10, "docs")
		require.NoError(t, err)
		require.Len(t, hits, 1)
		require.Equal(t, "doc1", hits[0].DocID)
		require.Equal(t, "0", hits[0].ChunkID)
		require.Positive(t, hits[0].Score)
	})

	t.Run("text search with no matches returns empty", func(t *testing.T) {
		hits, err := store.TextSearch(ctx, "quantum chromodynamics", 10, "docs")
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("searches are scoped to the collection", func(t *testing.T) {
		hits, err := store.VectorSearch(ctx, unitVec(0), 10, "other")
		require.NoError(t, err)
		require.Empty(t, hits)
	})

	t.Run("current version reads the tag", func(t *testing.T) {
		version, err := store.CurrentVersion(ctx, "docs")
		require.NoError(t, err)
		require.EqualValues(t, 3, version)
	})

	t.Run("unknown collection", func(t *testing.T) {
		_, err := store.CurrentVersion(ctx, "missing")
		require.True(t, errors.Is(err, ErrUnknownCollection))
	})
}
