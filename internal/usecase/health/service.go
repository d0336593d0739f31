// Package health aggregates component checks into a single status.
package health

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTimeout bounds one Check call.
const DefaultTimeout = 3 * time.Second

// Status is the aggregated health.
type Status string

// Aggregated statuses.
const (
	Healthy  Status = "ok"
	Degraded Status = "degraded"
)

// CheckResult is the outcome of one component check.
type CheckResult string

// Component outcomes. CheckNotReady means the index is missing or being rebuilt.
const (
	CheckOK       CheckResult = "ok"
	CheckError    CheckResult = "error"
	CheckNotReady CheckResult = "not_ready"
)

// Report maps component names to their outcome.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

type component struct {
	name  string
	check func(ctx context.Context) CheckResult
}

// Service runs every registered component check in parallel.
type Service struct {
	components []component
	timeout    time.Duration
}

// New checks the index backend and, when non-nil, the embedding provider.
func New(db DBPinger, embedding Checker) *Service {
	s := &Service{timeout: DefaultTimeout}
	s.add("database", probe(db.Ping))
	if embedding != nil {
		s.add("embedding", probe(embedding.HealthCheck))
	}
	return s
}

// WithLLM adds the ranking model under "llm".
func (s *Service) WithLLM(llm Checker) *Service {
	s.add("llm", probe(llm.HealthCheck))
	return s
}

// WithIndex adds index readiness under "index".
func (s *Service) WithIndex(index Readiness) *Service {
	s.add("index", func(context.Context) CheckResult {
		if index.Ready() {
			return CheckOK
		}
		return CheckNotReady
	})
	return s
}

// WithTimeout replaces DefaultTimeout. A check still running at the deadline fails.
func (s *Service) WithTimeout(d time.Duration) *Service {
	if d > 0 {
		s.timeout = d
	}
	return s
}

// Check runs all components and is Degraded unless every one is CheckOK.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]CheckResult, len(s.components))
	var g errgroup.Group
	for i, c := range s.components {
		g.Go(func() error {
			results[i] = c.check(ctx)
			return nil
		})
	}
	_ = g.Wait() // checks never return errors

	report := Report{Status: Healthy, Checks: make(map[string]CheckResult, len(s.components))}
	for i, c := range s.components {
		report.Checks[c.name] = results[i]
		if results[i] != CheckOK {
			report.Status = Degraded
		}
	}
	return report
}

func (s *Service) add(name string, check func(ctx context.Context) CheckResult) {
	s.components = append(s.components, component{name: name, check: check})
}

func probe(fn func(ctx context.Context) error) func(ctx context.Context) CheckResult {
	return func(ctx context.Context) CheckResult {
		if err := fn(ctx); err != nil {
			return CheckError
		}
		return CheckOK
	}
}
