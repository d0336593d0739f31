package indexing

import (
	"context"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
)

// Index is the write side of the vector index.
type Index interface {
	Recreate(ctx context.Context, dim int, metric string) error
	Upsert(ctx context.Context, records []catalog.IndexedVector) error
	Count(ctx context.Context) (int, error)
}

// Embedder vectorizes product texts. Batch support and declared dimensions
// are detected via domain.BatchEmbedder and domain.DimensionReporter.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
