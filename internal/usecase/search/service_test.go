package search

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/ranking"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
	"github.com/kailas-cloud/prodsearch/internal/repository/memindex"
)

func strPtr(s string) *string { return &s }

func mustRequest(t *testing.T, query string, m mode.Mode, brand *string, topK int) *request.Request {
	t.Helper()
	filters, err := request.Filters(brand, nil, nil, nil)
	if err != nil {
		t.Fatalf("Filters: %v", err)
	}
	req, err := request.New(query, m, filters, topK)
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &req
}

// --- Vector ---

func TestVector_BrandFilterOverMemIndex(t *testing.T) {
	cat := testCatalog(t)
	idx := memindex.New()
	ctx := context.Background()
	if err := idx.Recreate(ctx, 2, domain.MetricCosine); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	vectors := [][]float32{{1, 0}, {0.9, 0.1}, {0, 1}}
	records := make([]catalog.IndexedVector, cat.Len())
	for i, p := range cat.All() {
		records[i] = catalog.IndexedVector{ID: p.ID, Vector: vectors[i], Payload: p.Payload()}
	}
	if err := idx.Upsert(ctx, records); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	svc := New(cat, idx, &mockEmbedder{vec: []float32{1, 0}}, &mockRanker{}, readyFlag(true), Config{}, zap.NewNop())

	got, err := svc.Vector(ctx, mustRequest(t, "phone", mode.Vector, strPtr("Y"), 3))
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if len(got) != 1 || got[0].Name() != "Phone B" {
		t.Fatalf("expected only Phone B, got %v", names(got))
	}

	all, err := svc.Vector(ctx, mustRequest(t, "phone", mode.Vector, nil, 3))
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if !slices.Equal(names(all), []string{"Phone A", "Phone B", "Laptop C"}) {
		t.Errorf("unexpected order %v", names(all))
	}
}

func TestVector_SortsByScoreThenID(t *testing.T) {
	f := newFixture(t)
	cat := testCatalog(t)
	f.index.results = []result.Result{
		scored(t, cat, 2, 0.5),
		scored(t, cat, 1, 0.9),
		scored(t, cat, 0, 0.5),
	}

	for range 3 {
		got, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3))
		if err != nil {
			t.Fatalf("Vector: %v", err)
		}
		ids := []int{got[0].ProductID(), got[1].ProductID(), got[2].ProductID()}
		if !slices.Equal(ids, []int{1, 0, 2}) {
			t.Fatalf("ids = %v, want [1 0 2]", ids)
		}
		if s, ok := got[0].Score(); !ok || s != 0.9 {
			t.Errorf("score = %v, %v", s, ok)
		}
	}
}

func TestVector_NegativeScoresKeepOrder(t *testing.T) {
	f := newFixture(t)
	cat := testCatalog(t)
	f.index.results = []result.Result{
		scored(t, cat, 0, -1),
		scored(t, cat, 2, -0.6),
		scored(t, cat, 1, 0),
	}

	got, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3))
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	ids := []int{got[0].ProductID(), got[1].ProductID(), got[2].ProductID()}
	if !slices.Equal(ids, []int{1, 2, 0}) {
		t.Fatalf("ids = %v, want [1 2 0]", ids)
	}
	if s, _ := got[2].Score(); s != -1 {
		t.Errorf("opposite record score = %v, want -1", s)
	}
}

func TestVector_PassesTopKAndFilters(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, strPtr("X"), 7)); err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if f.index.lastLimit != 7 {
		t.Errorf("limit = %d", f.index.lastLimit)
	}
	if len(f.index.lastFilters.Must()) != 1 || f.index.lastFilters.Must()[0].Match() != "X" {
		t.Errorf("filters not forwarded: %+v", f.index.lastFilters.Must())
	}
}

func TestVector_NoMatchesIsEmptyNotNil(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3))
	if err != nil {
		t.Fatalf("Vector: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty slice, got %#v", got)
	}
}

func TestVector_NotReady(t *testing.T) {
	f := newFixture(t)
	f.svc.ready = readyFlag(false)

	_, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3))
	if !errors.Is(err, domain.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
	if f.embed.called {
		t.Error("embedder must not be called before the index is ready")
	}
}

func TestVector_EmbedError(t *testing.T) {
	f := newFixture(t)
	f.embed.err = fmt.Errorf("upstream: %w", domain.ErrEmbeddingProviderError)

	_, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3))
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
	if f.index.called {
		t.Error("index must not be queried when embedding fails")
	}
}

func TestVector_IndexError(t *testing.T) {
	f := newFixture(t)
	f.index.err = errors.New("conn reset")

	if _, err := f.svc.Vector(context.Background(), mustRequest(t, "q", mode.Vector, nil, 3)); err == nil {
		t.Fatal("expected error")
	}
}

func TestRequestValidation_NoExternalCalls(t *testing.T) {
	f := newFixture(t)

	bad := []func() error{
		func() error { _, err := request.New("q", mode.Vector, filter.Expression{}, 0); return err },
		func() error { _, err := request.New("q", mode.Vector, filter.Expression{}, -1); return err },
		func() error { _, err := request.Filters(strPtr("  "), nil, nil, nil); return err },
		func() error { _, err := request.Filters(strPtr("Y\n"), nil, nil, nil); return err },
		func() error { _, err := request.Filters(strPtr(strings.Repeat("b", 257)), nil, nil, nil); return err },
	}
	for i, fn := range bad {
		if err := fn(); !errors.Is(err, domain.ErrInvalidQuery) {
			t.Errorf("case %d: expected ErrInvalidQuery, got %v", i, err)
		}
	}
	if f.embed.called || f.index.called || f.ranker.calls != 0 {
		t.Error("validation failures must not reach collaborators")
	}
}

// --- Semantic ---

func TestSemantic_MapsIndicesInServiceOrder(t *testing.T) {
	f := newFixture(t)
	f.ranker.rankFn = replyWith(`{"results":[2,1]}`)

	out := f.svc.Semantic(context.Background(), "phone", testCatalog(t).All(), 2)

	if !out.Available() {
		t.Fatalf("expected ranked outcome, got %v", out.Err())
	}
	got := out.Products()
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 0 {
		t.Errorf("products = %+v, want [p1 p0]", got)
	}
}

func TestSemantic_NotTruncated(t *testing.T) {
	f := newFixture(t)
	f.ranker.rankFn = replyWith(`{"results":[3,2,1]}`)

	out := f.svc.Semantic(context.Background(), "q", testCatalog(t).All(), 1)
	if len(out.Products()) != 3 {
		t.Errorf("expected the LLM answer as-is, got %d products", len(out.Products()))
	}
}

func TestSemantic_Prompt(t *testing.T) {
	f := newFixture(t)
	f.svc.Semantic(context.Background(), "compact phone", testCatalog(t).All(), 2)

	p := f.ranker.lastPrompt
	for _, want := range []string{
		"compact phone",
		"1. Phone A (X): Compact phone | $100\n2. Phone B (Y): Large phone | $200\n3. Laptop C (X): Thin laptop | $999",
		"2 most relevant",
		`{"results": [idx1, idx2, ...]}`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
}

func TestSemantic_Unavailable(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string) (string, error)
	}{
		{"malformed json", replyWith(`results: 1, 2`)},
		{"out of range", replyWith(`{"results":[5]}`)},
		{"zero index", replyWith(`{"results":[0]}`)},
		{"repeated index", replyWith(`{"results":[1,1]}`)},
		{"wrong type", replyWith(`{"results":["a"]}`)},
		{"provider error", func(context.Context, string) (string, error) {
			return "", fmt.Errorf("401: %w", domain.ErrLLMProviderError)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ranker.rankFn = tt.fn

			out := f.svc.Semantic(context.Background(), "q", testCatalog(t).All(), 3)

			if out.Available() || out.Status() != ranking.StatusUnavailable {
				t.Fatalf("expected unavailable, got %q", out.Status())
			}
			if len(out.Products()) != 0 {
				t.Errorf("expected no products, got %d", len(out.Products()))
			}
			if !errors.Is(out.Err(), domain.ErrRankingUnavailable) {
				t.Errorf("expected ErrRankingUnavailable, got %v", out.Err())
			}
		})
	}
}

func TestSemantic_Timeout(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.LLMTimeout = 20 * time.Millisecond
	f.ranker.rankFn = func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}

	out := f.svc.Semantic(context.Background(), "q", testCatalog(t).All(), 3)

	if out.Available() {
		t.Fatal("expected unavailable on timeout")
	}
	if !errors.Is(out.Err(), context.DeadlineExceeded) {
		t.Errorf("expected deadline in chain, got %v", out.Err())
	}
}

func TestSemantic_FencedAndMissingResults(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"json fence", "```json\n{\"results\":[1]}\n```", 1},
		{"bare fence", "```\n{\"results\":[3, 1]}\n```", 2},
		{"missing key", `{"answer":"none"}`, 0},
		{"empty list", `{"results":[]}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ranker.rankFn = replyWith(tt.reply)

			out := f.svc.Semantic(context.Background(), "q", testCatalog(t).All(), 3)
			if !out.Available() {
				t.Fatalf("expected ranked outcome, got %v", out.Err())
			}
			if len(out.Products()) != tt.want {
				t.Errorf("got %d products, want %d", len(out.Products()), tt.want)
			}
		})
	}
}

func TestSemanticSearch_FiltersNarrowListing(t *testing.T) {
	f := newFixture(t)
	f.ranker.rankFn = replyWith(`{"results":[1]}`)

	out := f.svc.SemanticSearch(context.Background(), mustRequest(t, "q", mode.Semantic, strPtr("Y"), 3))

	if strings.Contains(f.ranker.lastPrompt, "Phone A") || !strings.Contains(f.ranker.lastPrompt, "1. Phone B") {
		t.Errorf("listing not narrowed:\n%s", f.ranker.lastPrompt)
	}
	if got := out.Products(); len(got) != 1 || got[0].Name != "Phone B" {
		t.Errorf("products = %+v", got)
	}
}

func TestSemanticSearch_EmptySubsetSkipsLLM(t *testing.T) {
	f := newFixture(t)

	out := f.svc.SemanticSearch(context.Background(), mustRequest(t, "q", mode.Semantic, strPtr("Z"), 3))

	if !out.Available() || len(out.Products()) != 0 {
		t.Errorf("expected empty ranked outcome, got %q %d", out.Status(), len(out.Products()))
	}
	if f.ranker.calls != 0 {
		t.Errorf("ranker called %d times", f.ranker.calls)
	}
}

// --- Hybrid ---

func TestHybrid_DedupesByNameVectorFirst(t *testing.T) {
	f := newFixture(t)
	cat := testCatalog(t)
	// vector [A, B], semantic [B, C]
	f.index.results = []result.Result{scored(t, cat, 0, 0.9), scored(t, cat, 1, 0.8)}
	f.ranker.rankFn = replyWith(`{"results":[2,3]}`)

	got, err := f.svc.Hybrid(context.Background(), mustRequest(t, "phone", mode.Hybrid, nil, 3))
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if !slices.Equal(names(got.Results), []string{"Phone A", "Phone B", "Laptop C"}) {
		t.Fatalf("results = %v", names(got.Results))
	}
	if _, ok := got.Results[1].Score(); !ok {
		t.Error("Phone B must be the scored vector copy")
	}
	if _, ok := got.Results[2].Score(); ok {
		t.Error("Laptop C comes from the LLM and has no score")
	}
	if got.Ranking != ranking.StatusOK {
		t.Errorf("ranking = %q", got.Ranking)
	}
}

func TestHybrid_TruncatesAndStaysUnique(t *testing.T) {
	f := newFixture(t)
	cat := testCatalog(t)
	f.index.results = []result.Result{scored(t, cat, 2, 0.9), scored(t, cat, 0, 0.8)}
	f.ranker.rankFn = replyWith(`{"results":[3,3,1,2]}`)

	for range 5 {
		got, err := f.svc.Hybrid(context.Background(), mustRequest(t, "q", mode.Hybrid, nil, 2))
		if err != nil {
			t.Fatalf("Hybrid: %v", err)
		}
		if !slices.Equal(names(got.Results), []string{"Laptop C", "Phone A"}) {
			t.Fatalf("results = %v", names(got.Results))
		}
	}
}

func TestHybrid_SemanticFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.index.results = []result.Result{scored(t, testCatalog(t), 1, 0.7)}
	f.ranker.rankFn = replyWith(`not json`)

	got, err := f.svc.Hybrid(context.Background(), mustRequest(t, "q", mode.Hybrid, nil, 3))
	if err != nil {
		t.Fatalf("Hybrid: %v", err)
	}
	if !slices.Equal(names(got.Results), []string{"Phone B"}) {
		t.Errorf("results = %v", names(got.Results))
	}
	if got.Ranking != ranking.StatusUnavailable {
		t.Errorf("ranking = %q", got.Ranking)
	}
}

func TestHybrid_VectorFailureIsError(t *testing.T) {
	f := newFixture(t)
	f.svc.ready = readyFlag(false)
	f.ranker.rankFn = replyWith(`{"results":[1]}`)

	if _, err := f.svc.Hybrid(context.Background(), mustRequest(t, "q", mode.Hybrid, nil, 3)); !errors.Is(err, domain.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
	if f.ranker.calls != 0 {
		t.Errorf("ranker called %d times before the index is ready", f.ranker.calls)
	}
	if f.embed.called {
		t.Error("embedder must not be called before the index is ready")
	}
}

func TestHybrid_UsesFullCatalog(t *testing.T) {
	f := newFixture(t)
	f.svc.Hybrid(context.Background(), mustRequest(t, "q", mode.Hybrid, nil, 3)) //nolint:errcheck // prompt only

	if !strings.Contains(f.ranker.lastPrompt, "3. Laptop C") {
		t.Errorf("prompt must list the whole catalog:\n%s", f.ranker.lastPrompt)
	}
}

// --- Search dispatch ---

func TestSearch_Dispatch(t *testing.T) {
	f := newFixture(t)
	f.index.results = []result.Result{scored(t, testCatalog(t), 0, 0.9)}
	f.ranker.rankFn = replyWith(`{"results":[2]}`)

	tests := []struct {
		m       mode.Mode
		want    []string
		ranking ranking.Status
	}{
		{mode.Vector, []string{"Phone A"}, ""},
		{mode.Semantic, []string{"Phone B"}, ranking.StatusOK},
		{mode.Hybrid, []string{"Phone A", "Phone B"}, ranking.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.m), func(t *testing.T) {
			resp, err := f.svc.Search(context.Background(), mustRequest(t, "q", tt.m, nil, 3))
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if resp.Mode != tt.m || resp.Ranking != tt.ranking {
				t.Errorf("mode = %q, ranking = %q", resp.Mode, resp.Ranking)
			}
			if !slices.Equal(names(resp.Results), tt.want) {
				t.Errorf("results = %v, want %v", names(resp.Results), tt.want)
			}
		})
	}
}

// --- merge ---

func TestMergeByName(t *testing.T) {
	mk := func(id int, name string) result.Result {
		return result.New(id, catalog.Payload{Name: name}, 0)
	}
	a, b, c := mk(0, "A"), mk(1, "B"), mk(2, "C")
	bSem := result.FromProduct(catalog.Product{ID: 1, Name: "B"})

	tests := []struct {
		name  string
		topK  int
		lists [][]result.Result
		want  []string
	}{
		{"collision", 3, [][]result.Result{{a, b}, {bSem, c}}, []string{"A", "B", "C"}},
		{"truncate", 2, [][]result.Result{{a, b}, {c}}, []string{"A", "B"}},
		{"duplicates within a list", 3, [][]result.Result{{a, a}, {a}}, []string{"A"}},
		{"empty", 3, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeByName(tt.topK, tt.lists...)
			if !slices.Equal(names(got), tt.want) {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
		})
	}
}
