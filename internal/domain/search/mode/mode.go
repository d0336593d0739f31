package mode

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Vector ranks by embedding similarity against the vector index.
	Vector Mode = "vector"
	// Semantic asks the LLM to rank the catalog listing.
	Semantic Mode = "semantic"
	// Hybrid merges vector and semantic results, vector first.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Vector || m == Semantic || m == Hybrid
}
