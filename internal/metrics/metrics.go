// Package metrics holds the Prometheus collectors of the service.
// Collectors are package globals; Register adds them to the default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "prodsearch"

var (
	latencyBuckets  = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	providerBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30}
	indexingBuckets = []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300}
)

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// Embedding provider and cache.
var (
	EmbeddingRequestsTotal   = counter("embedding_requests_total", "Embedding API requests by outcome", "provider", "model", "status")
	EmbeddingRequestDuration = histogram("embedding_request_duration_seconds", "Embedding API latency", providerBuckets, "provider", "model")
	EmbeddingTokensTotal     = counter("embedding_tokens_total", "Tokens billed by the embedding API", "provider", "model", "type")
	EmbeddingErrorsTotal     = counter("embedding_errors_total", "Embedding API failures by kind", "provider", "model", "error_type")
	// EmbeddingCacheTotal is labelled hit or miss.
	EmbeddingCacheTotal = counter("embedding_cache_total", "Embedding cache lookups", "result")
)

// LLM ranking.
var (
	LLMRequestsTotal   = counter("llm_requests_total", "Ranking LLM requests by outcome", "model", "status")
	LLMRequestDuration = histogram("llm_request_duration_seconds", "Ranking LLM latency", providerBuckets, "model")
	LLMErrorsTotal     = counter("llm_errors_total", "Ranking LLM failures by kind", "model", "error_type")
	// RankingOutcomesTotal is labelled ok or unavailable.
	RankingOutcomesTotal = counter("ranking_outcomes_total", "Semantic ranking outcomes", "status")
)

// Search and indexing.
var (
	SearchRequestsTotal = counter("search_requests_total", "Search requests by mode and outcome", "mode", "status")
	IndexingRunsTotal   = counter("indexing_runs_total", "Index rebuilds by outcome", "status")
	IndexingDuration    = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "indexing_duration_seconds",
		Help:      "Full index rebuild duration",
		Buckets:   indexingBuckets,
	})
	IndexedProducts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "indexed_products",
		Help:      "Products in the current index",
	})
)
