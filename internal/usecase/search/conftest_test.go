package search

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
)

type mockIndex struct {
	mu          sync.Mutex
	results     []result.Result
	err         error
	called      bool
	lastLimit   int
	lastFilters filter.Expression
}

func (m *mockIndex) Query(
	_ context.Context, _ []float32, limit int, filters filter.Expression,
) ([]result.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = true
	m.lastLimit = limit
	m.lastFilters = filters
	return m.results, m.err
}

type mockEmbedder struct {
	mu     sync.Mutex
	vec    []float32
	err    error
	called bool
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

type mockRanker struct {
	mu         sync.Mutex
	rankFn     func(ctx context.Context, prompt string) (string, error)
	calls      int
	lastPrompt string
}

func (m *mockRanker) Rank(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastPrompt = prompt
	fn := m.rankFn
	m.mu.Unlock()
	if fn == nil {
		return `{"results":[]}`, nil
	}
	return fn(ctx, prompt)
}

func replyWith(content string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) { return content, nil }
}

type readyFlag bool

func (r readyFlag) Ready() bool { return bool(r) }

// p0..p2 mirror the sample catalog: two phones of different brands and a laptop.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Product{
		{Name: "Phone A", Description: "Compact phone", Price: 100, Brand: "X", Category: "phones"},
		{Name: "Phone B", Description: "Large phone", Price: 200, Brand: "Y", Category: "phones"},
		{Name: "Laptop C", Description: "Thin laptop", Price: 999, Brand: "X", Category: "laptops"},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

type fixture struct {
	svc    *Service
	index  *mockIndex
	embed  *mockEmbedder
	ranker *mockRanker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		index:  &mockIndex{},
		embed:  &mockEmbedder{vec: []float32{1, 0}},
		ranker: &mockRanker{},
	}
	f.svc = New(testCatalog(t), f.index, f.embed, f.ranker, readyFlag(true), Config{}, zap.NewNop())
	return f
}

func scored(t *testing.T, cat *catalog.Catalog, id int, score float64) result.Result {
	t.Helper()
	p, err := cat.Get(id)
	if err != nil {
		t.Fatalf("Get(%d): %v", id, err)
	}
	return result.New(p.ID, p.Payload(), score)
}

func names(results []result.Result) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].Name()
	}
	return out
}
