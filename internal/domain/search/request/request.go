package request

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/mode"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096
	DefaultTopK    = 3
	MaxTopK        = 100
)

// Filterable attribute names.
const (
	AttrBrand    = "brand"
	AttrCategory = "category"
	AttrPrice    = "price"
)

// Request is a validated search query.
type Request struct {
	query      string
	searchMode mode.Mode
	filters    filter.Expression
	topK       int
}

// New validates search parameters. All failures wrap domain.ErrInvalidQuery.
// topK must be positive; hybrid requests take no filters.
func New(query string, m mode.Mode, filters filter.Expression, topK int) (Request, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Request{}, invalid("query is required")
	}
	if len(query) > MaxQueryLength {
		return Request{}, invalid("query too long (max %d chars)", MaxQueryLength)
	}
	if m == "" {
		m = mode.Hybrid
	}
	if !m.IsValid() {
		return Request{}, invalid("invalid search mode: %q", m)
	}
	if topK <= 0 {
		return Request{}, invalid("top_k must be positive, got %d", topK)
	}
	if topK > MaxTopK {
		return Request{}, invalid("top_k too large (max %d)", MaxTopK)
	}
	if m == mode.Hybrid && !filters.IsEmpty() {
		return Request{}, invalid("filters are not supported in hybrid mode")
	}

	return Request{
		query:      query,
		searchMode: m,
		filters:    filters,
		topK:       topK,
	}, nil
}

// Filters builds a filter expression from optional brand, category and price bounds.
// Nil values are absent; a present but blank brand or category is invalid.
func Filters(brand, category *string, minPrice, maxPrice *float64) (filter.Expression, error) {
	var conds []filter.Condition

	if brand != nil {
		c, err := filter.NewMatch(AttrBrand, *brand)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		conds = append(conds, c)
	}
	if category != nil {
		c, err := filter.NewMatch(AttrCategory, *category)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		conds = append(conds, c)
	}
	if minPrice != nil || maxPrice != nil {
		if (minPrice != nil && *minPrice < 0) || (maxPrice != nil && *maxPrice < 0) {
			return filter.Expression{}, invalid("price bounds must be non-negative")
		}
		r, err := filter.NewRangeFilter(minPrice, maxPrice)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		c, err := filter.NewRange(AttrPrice, r)
		if err != nil {
			return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
		}
		conds = append(conds, c)
	}

	expr, err := filter.NewExpression(conds...)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("%w: %w", domain.ErrInvalidQuery, err)
	}
	return expr, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Mode returns the search strategy.
func (r *Request) Mode() mode.Mode { return r.searchMode }

// Filters returns the pre-filter expression.
func (r *Request) Filters() filter.Expression { return r.filters }

// TopK returns the number of results requested.
func (r *Request) TopK() int { return r.topK }
