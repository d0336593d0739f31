// Package ranking models the outcome of LLM relevance ranking.
package ranking

import "github.com/kailas-cloud/prodsearch/internal/domain/catalog"

// Status distinguishes a ranked answer from an unavailable ranking service.
type Status string

// Ranking statuses.
const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Outcome is the typed result of semantic ranking.
// An unavailable outcome always has no products.
type Outcome struct {
	status   Status
	products []catalog.Product
	reason   error
}

// Ranked creates a successful outcome. An empty list means "no relevant products".
func Ranked(products []catalog.Product) Outcome {
	return Outcome{status: StatusOK, products: products}
}

// Unavailable creates a failed outcome carrying the failure reason.
func Unavailable(reason error) Outcome {
	return Outcome{status: StatusUnavailable, reason: reason}
}

// Status returns the outcome status.
func (o Outcome) Status() Status { return o.status }

// Available reports whether the ranking service produced an answer.
func (o Outcome) Available() bool { return o.status == StatusOK }

// Products returns ranked products in relevance order; empty when unavailable.
func (o Outcome) Products() []catalog.Product { return o.products }

// Err returns the failure reason, nil for ranked outcomes.
func (o Outcome) Err() error { return o.reason }
