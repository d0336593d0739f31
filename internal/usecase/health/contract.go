package health

import "context"

// DBPinger checks index backend availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks availability of a remote provider (embedding or LLM).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Readiness reports whether the vector index has been built.
type Readiness interface {
	Ready() bool
}
