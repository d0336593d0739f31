package search

import (
	"context"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
)

// Index is the read side of the vector index.
type Index interface {
	Query(ctx context.Context, vector []float32, limit int, filters filter.Expression) ([]result.Result, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Ranker sends a prompt to the LLM and returns the raw reply content.
type Ranker interface {
	Rank(ctx context.Context, prompt string) (string, error)
}

// Readiness reports whether the index can serve queries.
type Readiness interface {
	Ready() bool
}
