package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type embeddingsRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model"`
	Dimensions int      `json:"dimensions"`
}

type embeddingItem struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// embeddingsServer answers /embeddings with vectorFor(i) for each input i.
// A nil vectorFor returns no data at all.
func embeddingsServer(t *testing.T, tokens int, vectorFor func(i int) []float32) (*httptest.Server, *[]embeddingsRequest) {
	t.Helper()
	var seen []embeddingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer emb-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen = append(seen, req)

		data := []embeddingItem{}
		if vectorFor != nil {
			// reversed so the client has to restore input order
			for i := len(req.Input) - 1; i >= 0; i-- {
				data = append(data, embeddingItem{Object: "embedding", Embedding: vectorFor(i), Index: i})
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": tokens, "total_tokens": tokens},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func newTestEmbedder(url string, dims int) *Embedder {
	return NewEmbedder(&Config{
		APIKey:     "emb-key",
		BaseURL:    url,
		Model:      "text-embedding-3-small",
		Dimensions: dims,
		Provider:   "openai",
		Logger:     zap.NewNop(),
	})
}

func TestEmbedder_Embed(t *testing.T) {
	srv, seen := embeddingsServer(t, 7, func(int) []float32 { return []float32{0.6, 0.8} })

	res, err := newTestEmbedder(srv.URL, 2).Embed(context.Background(), "usb-c charger")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.6 || res.Embedding[1] != 0.8 {
		t.Errorf("embedding = %v", res.Embedding)
	}
	if res.PromptTokens != 7 || res.TotalTokens != 7 {
		t.Errorf("usage = %d/%d, want 7/7", res.PromptTokens, res.TotalTokens)
	}

	req := (*seen)[0]
	if req.Model != "text-embedding-3-small" || req.Dimensions != 2 || len(req.Input) != 1 || req.Input[0] != "usb-c charger" {
		t.Errorf("request = %+v", req)
	}
}

func TestEmbedder_BatchEmbedKeepsInputOrder(t *testing.T) {
	srv, seen := embeddingsServer(t, 30, func(i int) []float32 { return []float32{float32(i), 1} })
	emb := newTestEmbedder(srv.URL, 0)

	res, err := emb.BatchEmbed(context.Background(), []string{"phone", "laptop", "tablet"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(*seen) != 1 {
		t.Fatalf("expected a single request, got %d", len(*seen))
	}
	if (*seen)[0].Dimensions != 0 {
		t.Errorf("dimensions sent without being configured: %d", (*seen)[0].Dimensions)
	}
	for i, vec := range res.Embeddings {
		if vec[0] != float32(i) {
			t.Errorf("embedding %d belongs to input %v", i, vec[0])
		}
	}
	if res.TotalTokens != 30 {
		t.Errorf("TotalTokens = %d, want 30", res.TotalTokens)
	}
	if emb.Dimensions() != 0 {
		t.Errorf("Dimensions() = %d, want 0", emb.Dimensions())
	}
}

func TestEmbedder_BatchEmbedNoInput(t *testing.T) {
	res, err := newTestEmbedder("http://127.0.0.1:1", 0).BatchEmbed(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Embeddings != nil {
		t.Errorf("embeddings = %v, want nil", res.Embeddings)
	}
}

func TestEmbedder_EmptyResponse(t *testing.T) {
	srv, _ := embeddingsServer(t, 1, nil)

	_, err := newTestEmbedder(srv.URL, 0).Embed(context.Background(), "a")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) || !strings.Contains(err.Error(), "empty embedding response") {
		t.Fatalf("error = %v", err)
	}
}

func TestEmbedder_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	_, err := newTestEmbedder(srv.URL, 0).BatchEmbed(context.Background(), []string{"a", "b"})
	if !errors.Is(err, domain.ErrEmbeddingProviderError) || !strings.Contains(err.Error(), "expected 2 embeddings") {
		t.Fatalf("error = %v", err)
	}
}

func TestEmbedder_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"rate limit exceeded","type":"rate_limit_error"}}`, "429"},
		{"detail body", http.StatusBadRequest, `{"detail":"input too long"}`, "input too long"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestEmbedder(srv.URL, 0).Embed(context.Background(), "q")
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Fatalf("error = %v, want ErrEmbeddingProviderError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestEmbedder_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	defer srv.Close()

	if err := newTestEmbedder(srv.URL, 0).HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
	if err := newTestEmbedder("http://127.0.0.1:1", 0).HealthCheck(context.Background()); err == nil {
		t.Error("expected an error for an unreachable provider")
	}
}
