package answercache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	entryKeyPrefix = "docqa:answer:"
	epochKeyPrefix = "docqa:epoch:"
)

// Redis is the production Cache backend. Entries are stored as JSON
// with a Redis TTL; invalidation epochs live in per-collection counter
// keys bumped with INCR.
//
// Safe for concurrent use (go-redis clients are).
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedis creates a Redis-backed cache on an existing client.
func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: client, logger: logger}
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string, currentVersion int64) (Entry, error) {
	raw, err := r.client.Get(ctx, entryKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("cache backend get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		// A corrupt entry is unrecoverable; drop it and miss.
		r.logger.Warn("dropping corrupt cache entry", "key", key, "error", err)
		r.evict(ctx, key)
		return Entry{}, ErrMiss
	}

	epoch, err := r.currentEpoch(ctx, e.Collection)
	if err != nil {
		return Entry{}, fmt.Errorf("cache backend epoch read: %w", err)
	}

	if e.Version != currentVersion || e.Epoch != epoch {
		r.evict(ctx, key)
		return Entry{}, ErrMiss
	}

	return e, nil
}

// Put implements Cache. The entry is stamped with the collection's
// current epoch so a later InvalidateCollection invalidates it.
func (r *Redis) Put(ctx context.Context, key string, e Entry, ttl time.Duration) error {
	epoch, err := r.currentEpoch(ctx, e.Collection)
	if err != nil {
		return fmt.Errorf("cache backend epoch read: %w", err)
	}

	now := time.Now()
	e.Key = key
	e.CreatedAt = now
	e.ExpiresAt = now.Add(ttl)
	e.Epoch = epoch

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling cache entry: %w", err)
	}

	if err := r.client.Set(ctx, entryKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("cache backend set: %w", err)
	}
	return nil
}

// InvalidateCollection implements Cache. INCR on the epoch counter is
// O(1) regardless of how many entries the collection has.
func (r *Redis) InvalidateCollection(ctx context.Context, collection string) error {
	if err := r.client.Incr(ctx, epochKeyPrefix+collection).Err(); err != nil {
		return fmt.Errorf("cache backend invalidate: %w", err)
	}
	return nil
}

func (r *Redis) currentEpoch(ctx context.Context, collection string) (uint64, error) {
	raw, err := r.client.Get(ctx, epochKeyPrefix+collection).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil // never invalidated
	}
	if err != nil {
		return 0, err
	}
	epoch, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing epoch counter %q: %w", raw, err)
	}
	return epoch, nil
}

func (r *Redis) evict(ctx context.Context, key string) {
	if err := r.client.Del(ctx, entryKeyPrefix+key).Err(); err != nil {
		r.logger.Warn("evicting stale cache entry", "key", key, "error", err)
	}
}
