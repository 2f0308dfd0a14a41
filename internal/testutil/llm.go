// Package testutil provides hand-rolled fakes shared by unit tests:
// an embedder, a generator, and a retrieval index with scriptable
// failures. No external services are touched.
package testutil

import (
	"context"
	"sync"
	"time"
)

// MockEmbedder implements llm.Embedder.
type MockEmbedder struct {
	Vec   []float32 // vector to return; defaults to a fixed 3-dim vector
	Err   error     // error to return instead
	Delay time.Duration

	mu       sync.Mutex
	calls    int
	lastText string
}

// Embed returns the configured vector or error.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.lastText = text
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}
	if m.Vec != nil {
		return m.Vec, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// Calls reports how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastText reports the most recent Embed input.
func (m *MockEmbedder) LastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastText
}

// MockGenerator implements llm.Generator.
type MockGenerator struct {
	Response string
	Err      error
	Delay    time.Duration

	mu         sync.Mutex
	calls      int
	lastPrompt string
}

// Generate returns the configured response or error.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Calls reports how many times Generate ran.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastPrompt reports the most recent Generate input.
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}
