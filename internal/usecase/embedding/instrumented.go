// Package embedding decorates embedding providers with chunking, logging and usage accounting.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
)

// DefaultMaxAPIBatchSize is the largest number of inputs sent in one API request.
const DefaultMaxAPIBatchSize = 256

// InstrumentedEmbedder is the outermost embedder decorator. It splits large batches,
// adds spent tokens to the request's domain.EmbeddingUsage and logs every call.
// Transport metrics live in the provider adapters.
type InstrumentedEmbedder struct {
	inner     domain.Embedder
	chunkSize int
	logger    *zap.Logger
}

// NewInstrumentedEmbedder wraps inner; provider and model label the log lines.
func NewInstrumentedEmbedder(inner domain.Embedder, provider, model string, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{
		inner:     inner,
		chunkSize: DefaultMaxAPIBatchSize,
		logger:    logger.With(zap.String("provider", provider), zap.String("model", model)),
	}
}

// WithChunkSize caps the inputs per provider request. Non-positive values are ignored.
func (e *InstrumentedEmbedder) WithChunkSize(n int) *InstrumentedEmbedder {
	if n > 0 {
		e.chunkSize = n
	}
	return e
}

// Embed implements domain.Embedder.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Error("Embedding request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	domain.UsageFromContext(ctx).AddTokens(res.TotalTokens)
	e.logger.Debug("Embedding request completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed sends texts in chunks of at most chunkSize, in order, and concatenates the results.
func (e *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	start := time.Now()
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, 0, len(texts))}
	for offset := 0; offset < len(texts); offset += e.chunkSize {
		chunk := texts[offset:min(offset+e.chunkSize, len(texts))]

		res, err := domain.EmbedAll(ctx, e.inner, chunk)
		if err != nil {
			e.logger.Error("Batch embedding request failed",
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed at %d: %w", offset, err)
		}
		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	domain.UsageFromContext(ctx).AddTokens(out.TotalTokens)
	e.logger.Debug("Batch embedding completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

// Dimensions implements domain.DimensionReporter.
func (e *InstrumentedEmbedder) Dimensions() int {
	return domain.DimensionsOf(e.inner)
}

// HealthCheck asks the provider when it can answer.
func (e *InstrumentedEmbedder) HealthCheck(ctx context.Context) error {
	hc, ok := e.inner.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider health: %w", err)
	}
	return nil
}
