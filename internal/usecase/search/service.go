// Package search answers product queries by vector similarity, LLM ranking or both.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/ranking"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

// DefaultLLMTimeout bounds a single ranking call.
const DefaultLLMTimeout = 30 * time.Second

// Config tunes the service.
type Config struct {
	LLMTimeout time.Duration
}

// Response is the outcome of a dispatched search. Ranking is empty for vector mode.
type Response struct {
	Mode    mode.Mode
	Results []result.Result
	Ranking ranking.Status
}

// HybridResult is the merged vector and semantic answer.
type HybridResult struct {
	Results []result.Result
	Ranking ranking.Status
}

// Service runs searches against one catalog and its index.
type Service struct {
	catalog *catalog.Catalog
	index   Index
	embed   Embedder
	ranker  Ranker
	ready   Readiness
	cfg     Config
	logger  *zap.Logger
}

// New creates a search service.
func New(
	cat *catalog.Catalog, index Index, embed Embedder, ranker Ranker,
	ready Readiness, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = DefaultLLMTimeout
	}
	return &Service{
		catalog: cat, index: index, embed: embed, ranker: ranker,
		ready: ready, cfg: cfg, logger: logger,
	}
}

// Search dispatches a validated request to its strategy.
func (s *Service) Search(ctx context.Context, req *request.Request) (Response, error) {
	resp := Response{Mode: req.Mode()}
	var err error

	switch req.Mode() {
	case mode.Vector:
		resp.Results, err = s.Vector(ctx, req)
	case mode.Semantic:
		outcome := s.SemanticSearch(ctx, req)
		resp.Results = resultsOf(outcome)
		resp.Ranking = outcome.Status()
	case mode.Hybrid:
		var hr HybridResult
		hr, err = s.Hybrid(ctx, req)
		resp.Results, resp.Ranking = hr.Results, hr.Ranking
	default:
		err = fmt.Errorf("unsupported search mode %q: %w", req.Mode(), domain.ErrInvalidQuery)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(req.Mode()), status).Inc()

	if err != nil {
		return Response{}, err
	}
	return resp, nil
}

// Vector returns the top_k products nearest to the query embedding that pass
// the request filters, by descending score then ascending product ID.
func (s *Service) Vector(ctx context.Context, req *request.Request) ([]result.Result, error) {
	return s.vector(ctx, req.Query(), req.TopK(), req.Filters())
}

func (s *Service) vector(
	ctx context.Context, query string, topK int, filters filter.Expression,
) ([]result.Result, error) {
	if !s.ready.Ready() {
		return nil, domain.ErrIndexNotReady
	}

	emb, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	results, err := s.index.Query(ctx, emb.Embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	sortByScore(results)
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []result.Result{}
	}
	return results, nil
}

// SemanticSearch ranks the catalog, narrowed by the request filters, with the LLM.
// An empty subset is an empty ranking and the LLM is not called.
func (s *Service) SemanticSearch(ctx context.Context, req *request.Request) ranking.Outcome {
	products := s.catalog.All()
	if f := req.Filters(); !f.IsEmpty() {
		products = s.catalog.Subset(func(p catalog.Product) bool {
			return f.Accept(p.Payload().Attributes())
		})
	}
	return s.Semantic(ctx, req.Query(), products, req.TopK())
}

// Hybrid runs vector and semantic legs concurrently and merges them by product
// name, vector results first. A vector failure is an error; a semantic failure
// degrades to vector-only results.
func (s *Service) Hybrid(ctx context.Context, req *request.Request) (HybridResult, error) {
	if !req.Filters().IsEmpty() {
		return HybridResult{}, fmt.Errorf("filters are not supported in hybrid mode: %w", domain.ErrInvalidQuery)
	}
	if !s.ready.Ready() {
		return HybridResult{}, domain.ErrIndexNotReady
	}

	var (
		wg        sync.WaitGroup
		vec       []result.Result
		vecErr    error
		semantic  ranking.Outcome
		topK      = req.TopK()
		query     = req.Query()
		products  = s.catalog.All()
		noFilters filter.Expression
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vec, vecErr = s.vector(ctx, query, topK, noFilters)
	}()
	go func() {
		defer wg.Done()
		semantic = s.Semantic(ctx, query, products, topK)
	}()
	wg.Wait()

	if vecErr != nil {
		return HybridResult{}, vecErr
	}

	return HybridResult{
		Results: mergeByName(topK, vec, resultsOf(semantic)),
		Ranking: semantic.Status(),
	}, nil
}

func resultsOf(o ranking.Outcome) []result.Result {
	products := o.Products()
	out := make([]result.Result, len(products))
	for i, p := range products {
		out[i] = result.FromProduct(p)
	}
	return out
}
