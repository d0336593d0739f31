// Package openai adapts OpenAI-compatible HTTP APIs for embeddings and LLM ranking.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	User       string
	// Provider labels metrics, e.g. "openai" or "nebius".
	Provider string
	Logger   *zap.Logger
}

// Embedder turns product and query text into vectors through /embeddings.
type Embedder struct {
	client *openai.Client
	cfg    Config
}

// NewEmbedder creates an OpenAI-compatible embedding provider.
func NewEmbedder(cfg *Config) *Embedder {
	return &Embedder{client: newClient(cfg.APIKey, cfg.BaseURL), cfg: *cfg}
}

func newClient(apiKey, baseURL string) *openai.Client {
	c := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		c.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(c)
}

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	resp, err := e.request(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    resp.Data[0].Embedding,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// BatchEmbed sends all texts in one request and returns vectors in input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}

	resp, err := e.request(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err
	}
	if len(resp.Data) != len(texts) {
		e.countError("count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("expected %d embeddings, got %d: %w",
			len(texts), len(resp.Data), domain.ErrEmbeddingProviderError)
	}

	slices.SortFunc(resp.Data, func(a, b openai.Embedding) int { return a.Index - b.Index })
	vectors := make([][]float32, 0, len(resp.Data))
	for _, d := range resp.Data {
		vectors = append(vectors, d.Embedding)
	}

	return domain.BatchEmbeddingResult{
		Embeddings:   vectors,
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

// Dimensions is the requested vector size; 0 keeps the model default.
func (e *Embedder) Dimensions() int {
	return e.cfg.Dimensions
}

// HealthCheck lists models, which costs no tokens.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) request(ctx context.Context, input []string) (openai.EmbeddingResponse, error) {
	req := openai.EmbeddingRequest{
		Input:          input,
		Model:          openai.EmbeddingModel(e.cfg.Model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		User:           e.cfg.User,
		Dimensions:     e.cfg.Dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		e.countRequest("error")
		e.countError("api_error")
		return resp, parseAPIError("embedding", err, domain.ErrEmbeddingProviderError)
	case len(resp.Data) == 0:
		e.countRequest("error")
		e.countError("empty_response")
		return resp, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	e.countRequest("success")
	metrics.EmbeddingRequestDuration.WithLabelValues(e.cfg.Provider, e.cfg.Model).Observe(elapsed.Seconds())
	if resp.Usage.TotalTokens > 0 {
		tokens := metrics.EmbeddingTokensTotal
		tokens.WithLabelValues(e.cfg.Provider, e.cfg.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		tokens.WithLabelValues(e.cfg.Provider, e.cfg.Model, "total").Add(float64(resp.Usage.TotalTokens))
	}

	e.cfg.Logger.Debug("Embeddings created",
		zap.Int("inputs", len(input)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", elapsed),
	)
	return resp, nil
}

func (e *Embedder) countRequest(status string) {
	metrics.EmbeddingRequestsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, status).Inc()
}

func (e *Embedder) countError(kind string) {
	metrics.EmbeddingErrorsTotal.WithLabelValues(e.cfg.Provider, e.cfg.Model, kind).Inc()
}

// parseAPIError keeps the provider's status and message and wraps sentinel.
func parseAPIError(api string, err error, sentinel error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s API error %d: %s: %w", api, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := string(reqErr.Body)
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(reqErr.Body, &body) == nil && body.Detail != "" {
			detail = body.Detail
		}
		return fmt.Errorf("%s API error %d: %s: %w", api, reqErr.HTTPStatusCode, detail, sentinel)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s request: %w: %w", api, err, sentinel)
	}
	return fmt.Errorf("%s request failed: %w", api, sentinel)
}
