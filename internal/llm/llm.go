// Package llm defines the narrow interfaces the query pipeline needs
// from the language-model stack: turning text into a dense vector and
// turning a prompt into an answer. Genkit-backed implementations live
// here; the rest of the pipeline depends only on the interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

var (
	// ErrEmbeddingUnavailable indicates the embedding backend is
	// unreachable or returned no usable vector.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrGenerationUnavailable indicates the generation backend is
	// unreachable or failed.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrGenerationTimeout indicates generation exceeded its deadline.
	ErrGenerationTimeout = errors.New("generation timeout")
)

// Embedder turns a query string into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// GenkitEmbedder adapts a Genkit ai.Embedder to the Embedder interface.
type GenkitEmbedder struct {
	embedder ai.Embedder
}

// NewGenkitEmbedder wraps a Genkit embedder registered by a provider
// plugin (ollama, googleai).
func NewGenkitEmbedder(embedder ai.Embedder) *GenkitEmbedder {
	return &GenkitEmbedder{embedder: embedder}
}

// Embed generates the dense vector for text.
func (e *GenkitEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrEmbeddingUnavailable)
	}

	return resp.Embeddings[0].Embedding, nil
}

// GenkitGenerator adapts genkit.Generate to the Generator interface.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string // provider-qualified, e.g. "ollama/llama3.1"
}

// NewGenkitGenerator creates a generator bound to one model.
func NewGenkitGenerator(g *genkit.Genkit, modelName string) *GenkitGenerator {
	return &GenkitGenerator{g: g, modelName: modelName}
}

// Generate produces an answer for prompt. The caller controls the
// deadline through ctx; exceeding it yields ErrGenerationTimeout.
func (gn *GenkitGenerator) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithPrompt(prompt),
	}
	if gn.modelName != "" {
		opts = append(opts, ai.WithModelName(gn.modelName))
	}
	if maxTokens > 0 {
		opts = append(opts, ai.WithConfig(&ai.GenerationCommonConfig{
			MaxOutputTokens: maxTokens,
		}))
	}

	resp, err := genkit.Generate(ctx, gn.g, opts...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrGenerationTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: model returned empty response", ErrGenerationUnavailable)
	}

	return text, nil
}
