package answercache

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

// shardCount spreads keys across independent locks so concurrent
// requests on unrelated keys never contend.
const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// Memory is an in-process Cache for tests and single-binary
// deployments. Safe for concurrent use.
type Memory struct {
	shards [shardCount]shard
	epochs sync.Map // collection -> *atomic.Uint64
	now    func() time.Time
}

// NewMemory creates an empty in-memory cache.
func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	for i := range m.shards {
		m.shards[i].entries = make(map[string]Entry)
	}
	return m
}

func (m *Memory) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &m.shards[h.Sum32()%shardCount]
}

func (m *Memory) epoch(collection string) *atomic.Uint64 {
	v, _ := m.epochs.LoadOrStore(collection, new(atomic.Uint64))
	return v.(*atomic.Uint64)
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string, currentVersion int64) (Entry, error) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrMiss
	}

	stale := m.now().After(e.ExpiresAt) ||
		e.Version != currentVersion ||
		e.Epoch != m.epoch(e.Collection).Load()
	if stale {
		delete(s.entries, key)
		return Entry{}, ErrMiss
	}

	return e, nil
}

// Put implements Cache.
func (m *Memory) Put(_ context.Context, key string, e Entry, ttl time.Duration) error {
	now := m.now()
	e.Key = key
	e.CreatedAt = now
	e.ExpiresAt = now.Add(ttl)
	e.Epoch = m.epoch(e.Collection).Load()

	s := m.shardFor(key)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// InvalidateCollection implements Cache. Bumping the epoch makes every
// stored entry for the collection fail the epoch comparison at Get
// time; no scan happens.
func (m *Memory) InvalidateCollection(_ context.Context, collection string) error {
	m.epoch(collection).Add(1)
	return nil
}
