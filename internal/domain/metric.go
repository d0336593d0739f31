package domain

// Distance metrics a vector index can be built with. Scores are always
// reported as similarity, higher is closer.
const (
	MetricCosine = "cosine"
	MetricL2     = "l2"
	MetricIP     = "ip"
)
