package result

import "github.com/kailas-cloud/prodsearch/internal/domain/catalog"

// Result is a single search hit. Vector hits carry a similarity score, LLM-ranked hits do not.
type Result struct {
	productID int
	name      string
	price     float64
	brand     string
	category  string
	score     float64
	scored    bool
}

// New creates a scored search result from index payload.
func New(productID int, payload catalog.Payload, score float64) Result {
	return Result{
		productID: productID,
		name:      payload.Name,
		price:     payload.Price,
		brand:     payload.Brand,
		category:  payload.Category,
		score:     score,
		scored:    true,
	}
}

// FromProduct creates an unscored result from a catalog product.
func FromProduct(p catalog.Product) Result {
	return Result{
		productID: p.ID,
		name:      p.Name,
		price:     p.Price,
		brand:     p.Brand,
		category:  p.Category,
	}
}

// ProductID returns the catalog identifier.
func (r *Result) ProductID() int { return r.productID }

// Name returns the product name.
func (r *Result) Name() string { return r.name }

// Price returns the product price.
func (r *Result) Price() float64 { return r.price }

// Brand returns the product brand.
func (r *Result) Brand() string { return r.brand }

// Category returns the product category.
func (r *Result) Category() string { return r.category }

// Score returns the similarity score and whether the result has one.
func (r *Result) Score() (float64, bool) { return r.score, r.scored }
