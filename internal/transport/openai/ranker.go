package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

// DefaultRankerBaseURL is the OpenRouter endpoint.
const DefaultRankerBaseURL = "https://openrouter.ai/api/v1"

// RankerConfig holds the chat-completion settings.
type RankerConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Logger      *zap.Logger
}

// Ranker sends ranking prompts to a chat-completion model in JSON mode.
type Ranker struct {
	client      *openai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewRanker creates a chat-completion ranker.
func NewRanker(cfg *RankerConfig) *Ranker {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultRankerBaseURL
	}
	return &Ranker{
		client:      newClient(cfg.APIKey, baseURL),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}
}

// Rank sends prompt as a single user message and returns the raw content of the first choice.
// The call is not retried; the deadline comes from ctx.
func (r *Ranker) Rank(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: r.temperature,
	}

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		r.fail("api_error")
		return "", parseAPIError("llm", err, domain.ErrLLMProviderError)
	}
	if len(resp.Choices) == 0 {
		r.fail("empty_response")
		return "", fmt.Errorf("llm returned no choices: %w", domain.ErrLLMProviderError)
	}

	metrics.LLMRequestsTotal.WithLabelValues(r.model, "success").Inc()
	metrics.LLMRequestDuration.WithLabelValues(r.model).Observe(duration.Seconds())

	r.logger.Debug("LLM ranking completed",
		zap.String("model", r.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("duration", duration),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// HealthCheck verifies the API is reachable and the key is accepted.
func (r *Ranker) HealthCheck(ctx context.Context) error {
	if _, err := r.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (r *Ranker) fail(kind string) {
	metrics.LLMRequestsTotal.WithLabelValues(r.model, "error").Inc()
	metrics.LLMErrorsTotal.WithLabelValues(r.model, kind).Inc()
}
