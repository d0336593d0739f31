package catalog

import domcat "github.com/kailas-cloud/prodsearch/internal/domain/catalog"

// productDTO is the on-disk product record.
type productDTO struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
}

func (d productDTO) toDomain() domcat.Product {
	return domcat.Product{
		Name:        d.Name,
		Description: d.Description,
		Price:       d.Price,
		Brand:       d.Brand,
		Category:    d.Category,
	}
}
