// Package answercache stores generated answers keyed by normalized
// query, session scope, and collection. Entries are evicted by TTL, by
// a collection version tag compared at lookup time, and by an O(1)
// per-collection epoch counter bumped by InvalidateCollection — a
// re-ingested corpus must never serve stale answers.
//
// The cache is an acceleration, not a dependency: callers treat backend
// failures as misses and keep serving.
package answercache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// ErrMiss reports a cache miss. It is normal control flow, not a
// failure; any other error from Get means the backend is unhealthy.
var ErrMiss = errors.New("cache miss")

// Entry is one cached answer.
type Entry struct {
	Key        string    `json:"key"`
	Answer     string    `json:"answer"`
	ChunkIDs   []string  `json:"chunk_ids"`
	Collection string    `json:"collection"`
	Version    int64     `json:"version"` // collection version tag at generation time
	Epoch      uint64    `json:"epoch"`   // invalidation epoch at put time
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Cache is the answer cache contract. Implementations must be safe for
// concurrent use and must never serve an entry whose TTL elapsed, whose
// collection version tag differs from the current one, or whose
// collection was invalidated after the entry was stored.
type Cache interface {
	// Get returns the entry for key if it is still valid under
	// currentVersion, evicting and reporting ErrMiss otherwise.
	Get(ctx context.Context, key string, currentVersion int64) (Entry, error)

	// Put stores or overwrites an entry with expiry now+ttl. The entry's
	// Collection and Version fields must be set by the caller.
	Put(ctx context.Context, key string, e Entry, ttl time.Duration) error

	// InvalidateCollection marks every entry tied to the collection as
	// stale in O(1) by bumping an epoch counter compared at Get time.
	InvalidateCollection(ctx context.Context, collection string) error
}

// Normalize canonicalizes a query for key hashing: lower-cased with
// whitespace runs collapsed to single spaces.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key derives the cache key for a normalized query under a session
// scope and collection. It is a pure function: identical inputs always
// produce the same key (deterministic reuse), and any differing part
// produces a different key (no cross-session or cross-collection
// sharing).
func Key(normQuery, scope, collection string) string {
	h := sha256.New()
	h.Write([]byte(normQuery))
	h.Write([]byte{0x1f})
	h.Write([]byte(scope))
	h.Write([]byte{0x1f})
	h.Write([]byte(collection))
	return hex.EncodeToString(h.Sum(nil))
}
