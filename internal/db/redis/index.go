package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/prodsearch/internal/db"
)

// CreateIndex issues FT.CREATE ... ON HASH for a validated definition.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err //nolint:wrapcheck // already prefixed
	}

	cmd := s.b().Arbitrary("FT.CREATE").Args(createArgs(def)...).Build()
	err := s.do(ctx, cmd).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// DropIndex issues FT.DROPINDEX, with DD when the hashes should go too.
func (s *Store) DropIndex(ctx context.Context, name string, deleteDocs bool) error {
	cmd := s.b().Arbitrary("FT.DROPINDEX").Args(name)
	if deleteDocs {
		cmd = cmd.Args("DD")
	}

	err := s.do(ctx, cmd.Build()).Error()
	switch {
	case err == nil:
		return nil
	case isUnknownIndex(err):
		return db.ErrIndexNotFound
	default:
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
}

// Redis answers "Unknown index name", Valkey "not found".
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "not found")
}

func createArgs(def *db.IndexDefinition) []string {
	args := []string{def.Name, "ON", "HASH"}
	if def.Prefix != "" {
		args = append(args, "PREFIX", "1", def.Prefix)
	}
	args = append(args, "SCHEMA")
	for _, a := range def.Schema {
		args = append(args, attributeArgs(a)...)
	}
	return args
}

func attributeArgs(a db.Attribute) []string {
	args := []string{a.Field}
	if a.Alias != "" {
		args = append(args, "AS", a.Alias)
	}
	args = append(args, string(a.Kind))

	switch a.Kind {
	case db.KindTag:
		if a.Tag.Separator != "" {
			args = append(args, "SEPARATOR", a.Tag.Separator)
		}
		if a.Tag.CaseSensitive {
			args = append(args, "CASESENSITIVE")
		}
	case db.KindVector:
		args = append(args, hnswArgs(a.HNSW)...)
	}
	return args
}

// hnswArgs renders "HNSW <count> <params...>".
func hnswArgs(h db.HNSW) []string {
	distance := h.Distance
	if distance == "" {
		distance = db.DistanceCosine
	}

	params := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(h.Dim),
		"DISTANCE_METRIC", string(distance),
	}
	if h.M > 0 {
		params = append(params, "M", strconv.Itoa(h.M))
	}
	if h.EFConstruct > 0 {
		params = append(params, "EF_CONSTRUCTION", strconv.Itoa(h.EFConstruct))
	}
	return append([]string{"HNSW", strconv.Itoa(len(params))}, params...)
}
