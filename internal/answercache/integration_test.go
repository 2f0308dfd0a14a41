//go:build integration

package answercache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nstepanov/docqa/internal/answercache"
	"github.com/nstepanov/docqa/internal/log"
	"github.com/nstepanov/docqa/internal/testutil"
)

// The Redis backend must behave like the memory backend on the cache
// contract: hit, TTL miss, version-tag miss, epoch invalidation.
func TestRedisCache_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	client := testutil.SetupTestRedis(t)
	cache := answercache.NewRedis(client, log.NewNop())

	key := answercache.Key(answercache.Normalize("What is the capital of France?"), "session:s1", "docs")
	entry := answercache.Entry{
		Answer:     "Paris.",
		ChunkIDs:   []string{"doc1#0"},
		Collection: "docs",
		Version:    1,
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, entry, time.Minute))

		got, err := cache.Get(ctx, key, 1)
		require.NoError(t, err)
		require.Equal(t, "Paris.", got.Answer)
		require.Equal(t, []string{"doc1#0"}, got.ChunkIDs)
	})

	t.Run("unknown key misses", func(t *testing.T) {
		_, err := cache.Get(ctx, answercache.Key("other", "session:s1", "docs"), 1)
		require.True(t, errors.Is(err, answercache.ErrMiss))
	})

	t.Run("version mismatch evicts", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, entry, time.Minute))

		_, err := cache.Get(ctx, key, 2)
		require.True(t, errors.Is(err, answercache.ErrMiss))

		// Evicted, not just skipped: the old-version read also misses now.
		_, err = cache.Get(ctx, key, 1)
		require.True(t, errors.Is(err, answercache.ErrMiss))
	})

	t.Run("invalidate collection", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, entry, time.Minute))
		require.NoError(t, cache.InvalidateCollection(ctx, "docs"))

		_, err := cache.Get(ctx, key, 1)
		require.True(t, errors.Is(err, answercache.ErrMiss))
	})

	t.Run("other collection unaffected by invalidation", func(t *testing.T) {
		otherKey := answercache.Key("q", "session:s1", "archive")
		otherEntry := entry
		otherEntry.Collection = "archive"
		require.NoError(t, cache.Put(ctx, otherKey, otherEntry, time.Minute))

		require.NoError(t, cache.InvalidateCollection(ctx, "docs"))

		got, err := cache.Get(ctx, otherKey, 1)
		require.NoError(t, err)
		require.Equal(t, "Paris.", got.Answer)
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, cache.Put(ctx, key, entry, 100*time.Millisecond))
		time.Sleep(300 * time.Millisecond)

		_, err := cache.Get(ctx, key, 1)
		require.True(t, errors.Is(err, answercache.ErrMiss))
	})
}
