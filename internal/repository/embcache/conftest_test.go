package embcache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/db"
	"github.com/kailas-cloud/prodsearch/internal/domain"
)

// fakeProvider maps a text to a one-component vector equal to its length
// and charges one token per byte.
type fakeProvider struct {
	mu        sync.Mutex
	batches   [][]string
	err       error
	short     bool
	dims      int
	healthErr error
}

func (p *fakeProvider) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := p.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0], PromptTokens: res.PromptTokens, TotalTokens: res.TotalTokens}, nil
}

func (p *fakeProvider) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, texts)
	if p.err != nil {
		return domain.BatchEmbeddingResult{}, p.err
	}

	var out domain.BatchEmbeddingResult
	for _, text := range texts {
		out.Embeddings = append(out.Embeddings, []float32{float32(len(text))})
		out.PromptTokens += len(text)
	}
	out.TotalTokens = out.PromptTokens
	if p.short {
		out.Embeddings = out.Embeddings[:len(out.Embeddings)-1]
	}
	return out, nil
}

func (p *fakeProvider) Dimensions() int { return p.dims }

func (p *fakeProvider) HealthCheck(context.Context) error { return p.healthErr }

func (p *fakeProvider) sent() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	parts := make([]string, 0, len(p.batches))
	for _, b := range p.batches {
		parts = append(parts, strings.Join(b, ","))
	}
	return strings.Join(parts, ";")
}

// memKV is an in-memory store that can be told to fail.
type memKV struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
	failSet error
}

func newMemKV() *memKV {
	return &memKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memKV) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func newCache(t *testing.T, p *fakeProvider, kv store) *CachedEmbedder {
	t.Helper()
	return New(p, kv, Options{KeyPrefix: "emb:m:", TTL: time.Hour}, nil, zap.NewNop())
}
