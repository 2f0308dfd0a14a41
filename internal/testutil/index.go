package testutil

import (
	"context"
	"sync"

	"github.com/nstepanov/docqa/internal/index"
)

// FakeIndex implements the retriever's Index interface plus
// CurrentVersion. Each arm can be scripted to fail permanently (Err) or
// for the first N calls (Failures), which exercises the retry path.
type FakeIndex struct {
	DenseHits []index.Hit
	TextHits  []index.Hit

	DenseErr      error
	TextErr       error
	DenseFailures int // fail this many dense calls before succeeding
	TextFailures  int

	Version    int64
	VersionErr error

	mu           sync.Mutex
	denseCalls   int
	textCalls    int
	versionCalls int
}

// VectorSearch returns the scripted dense hits.
func (f *FakeIndex) VectorSearch(_ context.Context, _ []float32, _ int, _ string) ([]index.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denseCalls++
	if f.DenseErr != nil {
		return nil, f.DenseErr
	}
	if f.denseCalls <= f.DenseFailures {
		return nil, errTransient
	}
	return f.DenseHits, nil
}

// TextSearch returns the scripted text hits.
func (f *FakeIndex) TextSearch(_ context.Context, _ string, _ int, _ string) ([]index.Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	if f.TextErr != nil {
		return nil, f.TextErr
	}
	if f.textCalls <= f.TextFailures {
		return nil, errTransient
	}
	return f.TextHits, nil
}

// CurrentVersion returns the scripted collection version tag.
func (f *FakeIndex) CurrentVersion(_ context.Context, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versionCalls++
	if f.VersionErr != nil {
		return 0, f.VersionErr
	}
	return f.Version, nil
}

// DenseCalls reports how many dense searches ran.
func (f *FakeIndex) DenseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.denseCalls
}

// TextCalls reports how many text searches ran.
func (f *FakeIndex) TextCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls
}

type transientError struct{}

func (transientError) Error() string { return "transient index error" }

var errTransient = transientError{}
