// Package memindex is an embedded brute-force vector index.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
)

// Index keeps product vectors in memory and scores every record on each query.
// Scores are raw cosine similarity in [-1, 1], matching the FT backends.
type Index struct {
	mu      sync.RWMutex
	created bool
	dim     int
	records []entry
	byID    map[int]int
}

type entry struct {
	id      int
	vector  []float32
	norm    float64
	payload catalog.Payload
}

// New creates an empty index. Recreate must be called before Upsert.
func New() *Index {
	return &Index{byID: make(map[int]int)}
}

// Recreate drops all records and resets the index to the given dimension.
func (x *Index) Recreate(_ context.Context, dim int, metric string) error {
	if dim <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", dim)
	}
	if metric != domain.MetricCosine {
		return fmt.Errorf("unsupported metric %q", metric)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.created = true
	x.dim = dim
	x.records = nil
	x.byID = make(map[int]int)
	return nil
}

// Upsert inserts or replaces records by product ID.
func (x *Index) Upsert(_ context.Context, records []catalog.IndexedVector) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.created {
		return fmt.Errorf("upsert: index not created")
	}
	for _, r := range records {
		if len(r.Vector) != x.dim {
			return fmt.Errorf("product %d: got %d, want %d: %w",
				r.ID, len(r.Vector), x.dim, domain.ErrVectorDimMismatch)
		}
	}

	for _, r := range records {
		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		e := entry{id: r.ID, vector: vec, norm: norm(vec), payload: r.Payload}
		if pos, ok := x.byID[r.ID]; ok {
			x.records[pos] = e
			continue
		}
		x.byID[r.ID] = len(x.records)
		x.records = append(x.records, e)
	}
	return nil
}

// Query returns up to limit records closest to vector that pass filters,
// ordered by descending score, ties by ascending product ID.
func (x *Index) Query(
	_ context.Context, vector []float32, limit int, filters filter.Expression,
) ([]result.Result, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if !x.created {
		return nil, fmt.Errorf("query: index not created")
	}
	if len(vector) != x.dim {
		return nil, fmt.Errorf("query: got %d, want %d: %w", len(vector), x.dim, domain.ErrVectorDimMismatch)
	}
	if limit <= 0 {
		return nil, nil
	}

	qnorm := norm(vector)
	type scored struct {
		e     *entry
		score float64
	}
	hits := make([]scored, 0, len(x.records))
	for i := range x.records {
		e := &x.records[i]
		if !accept(filters, e.payload) {
			continue
		}
		hits = append(hits, scored{e: e, score: cosine(vector, qnorm, e.vector, e.norm)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].e.id < hits[j].e.id
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]result.Result, len(hits))
	for i, h := range hits {
		out[i] = result.New(h.e.id, h.e.payload, h.score)
	}
	return out, nil
}

// Count returns the number of stored records.
func (x *Index) Count(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.created {
		return 0, fmt.Errorf("count: index not created")
	}
	return len(x.records), nil
}

// Ping always succeeds; the index lives in process.
func (x *Index) Ping(_ context.Context) error { return nil }

func accept(f filter.Expression, p catalog.Payload) bool {
	if f.IsEmpty() {
		return true
	}
	return f.Accept(p.Attributes())
}

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return min(1, max(-1, dot/(an*bn)))
}
