package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/ranking"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

// Semantic asks the LLM to pick the topK most relevant products from the listing.
// Failures never surface as errors: they yield an Unavailable outcome.
func (s *Service) Semantic(
	ctx context.Context, query string, products []catalog.Product, topK int,
) ranking.Outcome {
	if len(products) == 0 {
		return s.ranked(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.LLMTimeout)
	defer cancel()

	content, err := s.ranker.Rank(ctx, BuildPrompt(query, products, topK))
	if err != nil {
		return s.unavailable(query, err)
	}

	indices, err := parseRanking(content)
	if err != nil {
		return s.unavailable(query, err)
	}

	picked := make([]catalog.Product, 0, len(indices))
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(products) {
			return s.unavailable(query, fmt.Errorf("index %d outside [1, %d]", idx, len(products)))
		}
		if _, dup := seen[idx]; dup {
			return s.unavailable(query, fmt.Errorf("index %d repeated", idx))
		}
		seen[idx] = struct{}{}
		picked = append(picked, products[idx-1])
	}
	return s.ranked(picked)
}

// BuildPrompt renders the ranking instruction with a 1-based product listing.
func BuildPrompt(query string, products []catalog.Product, topK int) string {
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = p.ListingLine(i + 1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the product list and find the %d most relevant products for the query.\n\n", topK)
	fmt.Fprintf(&b, "Query: %s\n\n", query)
	b.WriteString("Available products:\n")
	b.WriteString(strings.Join(lines, "\n"))
	fmt.Fprintf(&b, "\n\nReturn JSON with the indices of the %d most relevant products in order of relevance.\n", topK)
	b.WriteString(`Reply only with: {"results": [idx1, idx2, ...]}`)
	return b.String()
}

// parseRanking decodes {"results": [...]} from the reply, tolerating Markdown fences.
// A missing results key is an empty ranking.
func parseRanking(content string) ([]int, error) {
	var resp struct {
		Results []int `json:"results"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &resp); err != nil {
		return nil, fmt.Errorf("decode ranking reply: %w", err)
	}
	return resp.Results, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func (s *Service) ranked(products []catalog.Product) ranking.Outcome {
	metrics.RankingOutcomesTotal.WithLabelValues(string(ranking.StatusOK)).Inc()
	return ranking.Ranked(products)
}

func (s *Service) unavailable(query string, cause error) ranking.Outcome {
	metrics.RankingOutcomesTotal.WithLabelValues(string(ranking.StatusUnavailable)).Inc()
	s.logger.Warn("Semantic ranking unavailable",
		zap.Int("query_len", len(query)),
		zap.Error(cause),
	)
	return ranking.Unavailable(fmt.Errorf("%w: %w", domain.ErrRankingUnavailable, cause))
}
