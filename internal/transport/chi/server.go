// Package chi exposes the product search API over HTTP.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/prodsearch/internal/logger"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
	healthuc "github.com/kailas-cloud/prodsearch/internal/usecase/health"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeInvalidQuery           = "invalid_query"
	CodeNotFound               = "not_found"
	CodeIndexNotReady          = "index_not_ready"
	CodeIndexingFailed         = "indexing_failed"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeInternalError          = "internal_error"
)

const (
	maxBodyBytes = 1 << 20

	// headerEmbeddingTokens carries the tokens a request spent on embeddings.
	headerEmbeddingTokens = "X-Embedding-Tokens"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the product search API.
type Server struct {
	catalog       *catalog.Catalog
	search        Searcher
	indexer       Indexer
	health        HealthChecker
	defaultTopK   int
	maxTopK       int
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	cat *catalog.Catalog,
	search Searcher,
	indexer Indexer,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	return &Server{
		catalog:     cat,
		search:      search,
		indexer:     indexer,
		health:      health,
		defaultTopK: request.DefaultTopK,
		maxTopK:     request.MaxTopK,
		logger:      logger,
		errorHandlers: []errorHandler{
			sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery),
			sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
			sentinelHandler(domain.ErrIndexNotReady, http.StatusServiceUnavailable, CodeIndexNotReady),
			sentinelHandler(domain.ErrIndexingFailure, http.StatusInternalServerError, CodeIndexingFailed),
			sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		},
	}
}

// WithTopK overrides the default and maximum result counts for /search.
func (s *Server) WithTopK(defaultTopK, maxTopK int) *Server {
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 && maxTopK <= request.MaxTopK {
		s.maxTopK = maxTopK
	}
	return s
}

// Handler builds the router with the standard middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverJSON(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(accessLog(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/products", s.ListProducts)
	r.Get("/products/{id}", s.GetProduct)
	r.Post("/search", s.Search)
	r.Post("/index/rebuild", s.RebuildIndex)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// ProductResponse is a catalog product.
type ProductResponse struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
}

// ProductListResponse is a filtered catalog listing.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Total int               `json:"total"`
}

// SearchRequest is the body of POST /search.
type SearchRequest struct {
	Query    string   `json:"query"`
	Mode     string   `json:"mode,omitempty"`
	TopK     *int     `json:"top_k,omitempty"`
	Brand    *string  `json:"brand,omitempty"`
	Category *string  `json:"category,omitempty"`
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
}

// SearchResultItem is a single hit. Score is set for vector-sourced results only.
type SearchResultItem struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Price    float64  `json:"price"`
	Brand    string   `json:"brand"`
	Category string   `json:"category"`
	Score    *float64 `json:"score,omitempty"`
}

// SearchResponse is the body returned by POST /search.
type SearchResponse struct {
	Mode    string             `json:"mode"`
	Results []SearchResultItem `json:"results"`
	Ranking string             `json:"ranking,omitempty"`
}

// RebuildResponse reports a completed index build.
type RebuildResponse struct {
	Indexed    int   `json:"indexed"`
	Dimensions int   `json:"dimensions"`
	DurationMS int64 `json:"duration_ms"`
}

// HealthResponse is the body returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{Status: string(report.Status), Checks: checks})
}

// ListProducts handles GET /products.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	expr, err := request.Filters(optional(q.Get("brand")), optional(q.Get("category")), nil, nil)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	products := s.catalog.Subset(func(p catalog.Product) bool {
		return expr.Accept(p.Payload().Attributes())
	})

	items := make([]ProductResponse, len(products))
	for i, p := range products {
		items[i] = productToResponse(p)
	}
	writeJSON(w, http.StatusOK, ProductListResponse{Items: items, Total: len(items)})
}

// GetProduct handles GET /products/{id}.
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "product id must be an integer")
		return
	}

	p, err := s.catalog.Get(id)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productToResponse(p))
}

// Search handles POST /search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	req, err := s.searchRequestFromBody(body)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	resp, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]SearchResultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = searchResultToResponse(&resp.Results[i])
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, SearchResponse{
		Mode:    string(resp.Mode),
		Results: items,
		Ranking: string(resp.Ranking),
	})
}

// RebuildIndex handles POST /index/rebuild.
func (s *Server) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	report, err := s.indexer.Build(r.Context(), s.catalog)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{
		Indexed:    report.Indexed,
		Dimensions: report.Dimensions,
		DurationMS: report.Duration.Milliseconds(),
	})
}

func (s *Server) searchRequestFromBody(body SearchRequest) (request.Request, error) {
	topK := s.defaultTopK
	if body.TopK != nil {
		topK = *body.TopK
		if topK > s.maxTopK {
			return request.Request{}, fmt.Errorf("%w: top_k too large (max %d)", domain.ErrInvalidQuery, s.maxTopK)
		}
	}

	filters, err := request.Filters(body.Brand, body.Category, body.MinPrice, body.MaxPrice)
	if err != nil {
		return request.Request{}, err //nolint:wrapcheck // already wraps ErrInvalidQuery
	}

	var m mode.Mode
	if body.Mode != "" {
		m = mode.Mode(body.Mode)
	}
	return request.New(body.Query, m, filters, topK) //nolint:wrapcheck // already wraps ErrInvalidQuery
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func productToResponse(p catalog.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Brand:       p.Brand,
		Category:    p.Category,
	}
}

func searchResultToResponse(r *result.Result) SearchResultItem {
	item := SearchResultItem{
		ID:       r.ProductID(),
		Name:     r.Name(),
		Price:    r.Price(),
		Brand:    r.Brand(),
		Category: r.Category(),
	}
	if score, ok := r.Score(); ok {
		item.Score = &score
	}
	return item
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if tokens, used := usage.Snapshot(); used {
		w.Header().Set(headerEmbeddingTokens, strconv.Itoa(tokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// Invalid queries echo the validation message; other sentinels expose only their own text.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if errors.Is(sentinel, domain.ErrInvalidQuery) || errors.Is(sentinel, domain.ErrNotFound) {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("Request failed", zap.Error(err))
			return
		}
	}
	log.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
