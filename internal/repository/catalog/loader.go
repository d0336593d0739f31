// Package catalog loads the product catalog from a JSON file.
package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	domcat "github.com/kailas-cloud/prodsearch/internal/domain/catalog"
)

// LoadFile reads a JSON array of products from path.
func LoadFile(path string) (*domcat.Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Decode parses a JSON array of products. IDs follow array order.
func Decode(r io.Reader) (*domcat.Catalog, error) {
	var dtos []productDTO
	if err := json.NewDecoder(r).Decode(&dtos); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domcat.Product, len(dtos))
	for i, d := range dtos {
		products[i] = d.toDomain()
	}

	c, err := domcat.New(products)
	if err != nil {
		return nil, fmt.Errorf("validate products: %w", err)
	}
	return c, nil
}
