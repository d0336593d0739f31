// Package vectorindex stores product vectors in a Redis/Valkey FT index.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/prodsearch/internal/db"
	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/filter"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/result"
)

// Hash field names.
const (
	fieldName     = "name"
	fieldPrice    = "price"
	fieldBrand    = "brand"
	fieldCategory = "category"
	fieldVector   = "__vector"
	vectorAlias   = "vector"
)

var returnFields = []string{fieldName, fieldPrice, fieldBrand, fieldCategory}

// store is the consumer interface for the index repository (ISP).
type store interface {
	db.Pinger
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// HNSWConfig holds HNSW graph parameters for FT.CREATE.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Config names the index and its key space.
type Config struct {
	IndexName string
	KeyPrefix string
	HNSW      HNSWConfig
}

// Repo implements the vector index over an FT-capable store.
type Repo struct {
	store store
	cfg   Config
}

// New creates a vector index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

// Recreate drops the index together with its hashes and creates an empty one.
func (r *Repo) Recreate(ctx context.Context, dim int, metric string) error {
	distance, err := distanceOf(metric)
	if err != nil {
		return err
	}

	if err := r.store.DropIndex(ctx, r.cfg.IndexName, true); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", r.cfg.IndexName, err)
	}

	def, err := db.NewIndex(r.cfg.IndexName, r.cfg.KeyPrefix).
		Tag(fieldBrand, db.TagOptions{Separator: filter.TagSeparator, CaseSensitive: true}).
		Tag(fieldCategory, db.TagOptions{Separator: filter.TagSeparator, CaseSensitive: true}).
		Numeric(fieldPrice).
		Vector(fieldVector, vectorAlias, db.HNSW{
			Dim:         dim,
			Distance:    distance,
			M:           r.cfg.HNSW.M,
			EFConstruct: r.cfg.HNSW.EFConstruct,
		}).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", r.cfg.IndexName, err)
	}
	return nil
}

// Upsert writes all records in one pipelined round-trip.
func (r *Repo) Upsert(ctx context.Context, records []catalog.IndexedVector) error {
	if len(records) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		items[i] = db.HashSetItem{
			Key: r.key(rec.ID),
			Fields: map[string]string{
				fieldName:     rec.Payload.Name,
				fieldPrice:    strconv.FormatFloat(rec.Payload.Price, 'f', -1, 64),
				fieldBrand:    rec.Payload.Brand,
				fieldCategory: rec.Payload.Category,
				fieldVector:   db.EncodeVector(rec.Vector),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(records), err)
	}
	return nil
}

// Query runs a KNN search with the filter as FT pre-filter.
func (r *Repo) Query(
	ctx context.Context, vector []float32, limit int, filters filter.Expression,
) ([]result.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		Filters:      filters,
		Vector:       vector,
		K:            limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", r.cfg.IndexName, err)
	}
	return r.parseEntries(sr)
}

// Count returns the number of indexed products.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, r.cfg.IndexName, "*")
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", r.cfg.IndexName, err)
	}
	return n, nil
}

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	return r.store.Ping(ctx) //nolint:wrapcheck // health reports the raw cause
}

func (r *Repo) key(id int) string {
	return r.cfg.KeyPrefix + strconv.Itoa(id)
}

func (r *Repo) parseEntries(sr *db.SearchResult) ([]result.Result, error) {
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	out := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id, err := strconv.Atoi(strings.TrimPrefix(e.Key, r.cfg.KeyPrefix))
		if err != nil {
			return nil, fmt.Errorf("unexpected key %q in %s", e.Key, r.cfg.IndexName)
		}
		price, err := strconv.ParseFloat(e.Fields[fieldPrice], 64)
		if err != nil {
			return nil, fmt.Errorf("key %s: bad price %q", e.Key, e.Fields[fieldPrice])
		}
		out = append(out, result.New(id, catalog.Payload{
			Name:     e.Fields[fieldName],
			Price:    price,
			Brand:    e.Fields[fieldBrand],
			Category: e.Fields[fieldCategory],
		}, e.Score))
	}
	return out, nil
}

func distanceOf(metric string) (db.DistanceMetric, error) {
	switch metric {
	case domain.MetricCosine:
		return db.DistanceCosine, nil
	case domain.MetricL2:
		return db.DistanceL2, nil
	case domain.MetricIP:
		return db.DistanceIP, nil
	default:
		return "", fmt.Errorf("unsupported metric %q", metric)
	}
}
