package catalog

import (
	"fmt"
	"regexp"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// MaxAttributeLength bounds brand and category values.
const MaxAttributeLength = 256

// Brand and category are indexed as tags split on '|'.
var noTagSeparator = validation.Match(regexp.MustCompile(`^[^|]*$`)).Error("must not contain '|'")

// Product is an immutable catalog record. ID is its 0-based position in the catalog.
type Product struct {
	ID          int
	Name        string
	Description string
	Price       float64
	Brand       string
	Category    string
}

// Validate checks the record fields.
func (p Product) Validate() error {
	return validation.ValidateStruct(&p, //nolint:wrapcheck // ozzo errors are field maps
		validation.Field(&p.Name, validation.Required),
		validation.Field(&p.Price, validation.Min(0.0)),
		validation.Field(&p.Brand, validation.Length(0, MaxAttributeLength), noTagSeparator),
		validation.Field(&p.Category, validation.Length(0, MaxAttributeLength), noTagSeparator),
	)
}

// EmbeddingText is the text that represents the product in the vector index.
func (p Product) EmbeddingText() string {
	return p.Name + " " + p.Description
}

// ListingLine renders the product as a numbered prompt line.
func (p Product) ListingLine(idx int) string {
	return fmt.Sprintf("%d. %s (%s): %s | $%s", idx, p.Name, p.Brand, p.Description, FormatPrice(p.Price))
}

// Payload returns the attributes stored next to the product vector.
func (p Product) Payload() Payload {
	return Payload{Name: p.Name, Price: p.Price, Brand: p.Brand, Category: p.Category}
}

// FormatPrice renders a price without trailing zeros.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', -1, 64)
}

// Payload is the subset of product attributes kept in the vector index.
type Payload struct {
	Name     string
	Price    float64
	Brand    string
	Category string
}

// Attributes returns the filterable tag and numeric attributes.
func (p Payload) Attributes() (tags map[string]string, numerics map[string]float64) {
	return map[string]string{"brand": p.Brand, "category": p.Category},
		map[string]float64{"price": p.Price}
}

// IndexedVector is a product embedding keyed by product ID.
type IndexedVector struct {
	ID      int
	Vector  []float32
	Payload Payload
}
