// Package catalog holds the immutable product catalog.
package catalog

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/prodsearch/internal/domain"
)

// Catalog is an ordered, read-only list of products.
type Catalog struct {
	products []Product
}

// New validates products and assigns each one its position as ID.
func New(products []Product) (*Catalog, error) {
	items := make([]Product, len(products))
	for i, p := range products {
		p.ID = i
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("product %d (%q): %w", i, p.Name, err)
		}
		items[i] = p
	}
	return &Catalog{products: items}, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }

// All returns a copy of the products in catalog order.
func (c *Catalog) All() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get returns the product with the given ID.
func (c *Catalog) Get(id int) (Product, error) {
	if id < 0 || id >= len(c.products) {
		return Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return c.products[id], nil
}

// Subset returns the products accepted by keep, in catalog order.
func (c *Catalog) Subset(keep func(Product) bool) []Product {
	var out []Product
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Brands returns the distinct brands, sorted.
func (c *Catalog) Brands() []string {
	seen := make(map[string]struct{})
	for _, p := range c.products {
		if p.Brand != "" {
			seen[p.Brand] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}
