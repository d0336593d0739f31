package domain

import (
	"context"
	"fmt"
)

// Embedder turns one text into a vector. Batching, fixed dimensions and
// health probes are optional capabilities discovered by type assertion.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// DimensionReporter returns 0 when the size is only known after the first call.
type DimensionReporter interface {
	Dimensions() int
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult is positional: Embeddings[i] is the vector of input i.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll embeds texts in one batch call when e supports it,
// and one Embed call per text otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if b, ok := e.(BatchEmbedder); ok {
		return b.BatchEmbed(ctx, texts) //nolint:wrapcheck // callers add context
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for i := range texts {
		res, err := e.Embed(ctx, texts[i])
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("text %d of %d: %w", i+1, len(texts), err)
		}
		out.Embeddings = append(out.Embeddings, res.Embedding)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// DimensionsOf is e's declared dimension, 0 when it declares none.
func DimensionsOf(e Embedder) int {
	if r, ok := e.(DimensionReporter); ok {
		return r.Dimensions()
	}
	return 0
}
