// Package embcache puts a key-value cache in front of an embedding provider.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/db"
	"github.com/kailas-cloud/prodsearch/internal/domain"
)

// store is satisfied by both the Redis/Valkey and the Badger backends.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options tune key layout and expiry. A zero TTL keeps entries forever.
type Options struct {
	KeyPrefix string
	TTL       time.Duration
}

// CachedEmbedder serves repeated texts from the cache. Cache failures only cost a provider call.
type CachedEmbedder struct {
	inner   domain.Embedder
	store   store
	opts    Options
	lookups *prometheus.CounterVec
	logger  *zap.Logger
}

// New wraps inner. lookups is labelled by "result" (hit or miss) and may be nil.
func New(
	inner domain.Embedder,
	s store,
	opts Options,
	lookups *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, store: s, opts: opts, lookups: lookups, logger: logger}
}

// Embed implements domain.Embedder. A hit reports zero tokens.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.key(text)
	if vec, ok := c.load(ctx, key); ok {
		c.count(1, 0)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	c.count(0, 1)

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}
	c.save(ctx, key, res.Embedding)
	return res, nil
}

// BatchEmbed looks every text up first and sends only the misses to the provider, in one call.
func (c *CachedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	keys := make([]string, len(texts))
	var pending []int
	for i, text := range texts {
		keys[i] = c.key(text)
		if vec, ok := c.load(ctx, keys[i]); ok {
			out.Embeddings[i] = vec
		} else {
			pending = append(pending, i)
		}
	}
	c.count(len(texts)-len(pending), len(pending))
	if len(pending) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(pending))
	for j, i := range pending {
		missTexts[j] = texts[i]
	}
	fresh, err := domain.EmbedAll(ctx, c.inner, missTexts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("embed %d texts: %w", len(missTexts), err)
	}
	if len(fresh.Embeddings) != len(missTexts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d embeddings for %d texts",
			domain.ErrEmbeddingProviderError, len(fresh.Embeddings), len(missTexts))
	}

	for j, i := range pending {
		out.Embeddings[i] = fresh.Embeddings[j]
		c.save(ctx, keys[i], fresh.Embeddings[j])
	}
	out.PromptTokens = fresh.PromptTokens
	out.TotalTokens = fresh.TotalTokens
	return out, nil
}

// Dimensions implements domain.DimensionReporter.
func (c *CachedEmbedder) Dimensions() int {
	return domain.DimensionsOf(c.inner)
}

// HealthCheck checks the provider; the cache itself is optional.
func (c *CachedEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := c.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // decorator is transparent
	}
	return nil
}

// key is the prefix followed by the hex SHA-256 of text.
func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.opts.KeyPrefix + hex.EncodeToString(sum[:])
}

func (c *CachedEmbedder) load(ctx context.Context, key string) ([]float32, bool) {
	blob, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return nil, false
	case err != nil:
		c.logger.Warn("Embedding cache lookup failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case len(blob) == 0:
		return nil, false
	}

	vec, err := db.DecodeVector(blob)
	if err != nil {
		c.logger.Warn("Dropping corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *CachedEmbedder) save(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, []byte(db.EncodeVector(vec)), c.opts.TTL); err != nil {
		c.logger.Warn("Embedding cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) count(hits, misses int) {
	if c.lookups == nil {
		return
	}
	if hits > 0 {
		c.lookups.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		c.lookups.WithLabelValues("miss").Add(float64(misses))
	}
}
