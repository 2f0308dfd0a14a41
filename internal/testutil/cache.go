package testutil

import (
	"context"
	"time"

	"github.com/nstepanov/docqa/internal/answercache"
)

// FailingCache implements answercache.Cache with every call failing,
// simulating an unreachable backend.
type FailingCache struct {
	Err error
}

// Get fails.
func (f *FailingCache) Get(context.Context, string, int64) (answercache.Entry, error) {
	return answercache.Entry{}, f.Err
}

// Put fails.
func (f *FailingCache) Put(context.Context, string, answercache.Entry, time.Duration) error {
	return f.Err
}

// InvalidateCollection fails.
func (f *FailingCache) InvalidateCollection(context.Context, string) error {
	return f.Err
}
