package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/ranking"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/prodsearch/internal/usecase/search"
)

func (s *session) indexCommand(c *cli.Context) error {
	if _, err := s.open(c.Context); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Indexed %d products (dimensions %d) in %s\n",
		s.report.Indexed, s.report.Dimensions, s.report.Duration.Round(time.Millisecond))
	return nil
}

func (s *session) searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("query is required")
	}

	topK := c.Int("top-k")
	if !c.IsSet("top-k") {
		topK = s.cfg.Search.DefaultTopK
	}

	var brand *string
	if c.IsSet("brand") {
		b := c.String("brand")
		brand = &b
	}

	req, err := buildRequest(query, mode.Mode(c.String("mode")), brand, topK, s.cfg.Search.MaxTopK)
	if err != nil {
		return err
	}

	a, err := s.open(c.Context)
	if err != nil {
		return err
	}

	resp, err := a.Search.Search(c.Context, &req)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	printResponse(c.App.Writer, resp)
	return nil
}

// buildRequest validates search input before any service is touched.
func buildRequest(query string, m mode.Mode, brand *string, topK, maxTopK int) (request.Request, error) {
	if maxTopK > 0 && topK > maxTopK {
		return request.Request{}, fmt.Errorf("top_k too large (max %d)", maxTopK)
	}
	filters := filter.Expression{}
	if brand != nil {
		var err error
		filters, err = request.Filters(brand, nil, nil, nil)
		if err != nil {
			return request.Request{}, err //nolint:wrapcheck // message is user-facing as is
		}
	}
	return request.New(query, m, filters, topK) //nolint:wrapcheck // message is user-facing as is
}

// printResponse writes numbered results the same way for every mode.
// Vector-scored results carry their similarity.
func printResponse(w io.Writer, resp searchuc.Response) {
	unavailable := resp.Ranking == ranking.StatusUnavailable
	if unavailable {
		fmt.Fprintln(w, "Semantic ranking unavailable")
	}
	if len(resp.Results) == 0 {
		if !unavailable {
			fmt.Fprintln(w, "Nothing found")
		}
		return
	}
	fmt.Fprintln(w, "Results:")
	for i := range resp.Results {
		r := &resp.Results[i]
		line := fmt.Sprintf("%d. %s (%s) - $%s", i+1, r.Name(), r.Brand(), catalog.FormatPrice(r.Price()))
		if score, ok := r.Score(); ok {
			line += fmt.Sprintf(" [score %.3f]", score)
		}
		fmt.Fprintln(w, line)
	}
}
