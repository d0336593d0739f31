package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/prodsearch/internal/db"
)

// scoreField is the distance attribute FT.SEARCH adds for the "vector" alias.
const scoreField = "__vector_score"

// SearchKNN returns the K nearest hashes, pre-filtered by q.Filters.
// Score is 1 - cosine distance, a similarity in [-1, 1]. Entries are in server order.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already prefixed
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(q.IndexName, knnQuery(q.Filters, q.K))
	if n := len(q.ReturnFields); n > 0 {
		cmd = cmd.Args("RETURN", strconv.Itoa(n+1)).Args(q.ReturnFields...).Args(scoreField)
	}
	cmd = cmd.Args(
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", db.EncodeVector(q.Vector),
		"DIALECT", "2",
	)

	reply, err := s.do(ctx, cmd.Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return decodeKNNReply(reply)
}

// SearchCount runs query with LIMIT 0 0 and returns the match count.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0").Build()
	reply, err := s.do(ctx, cmd).ToArray()
	switch {
	case err != nil && isUnknownIndex(err):
		return 0, db.ErrIndexNotFound
	case err != nil:
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	case len(reply) == 0:
		return 0, nil
	}

	n, err := reply[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(n), nil
}

// decodeKNNReply reads the RESP2 layout: total, then key and field list for each hit.
// Malformed hits are skipped.
func decodeKNNReply(reply []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(reply) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := reply[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	out := &db.SearchResult{Total: int(total)}
	for i := 1; i+1 < len(reply); i += 2 {
		key, keyErr := reply[i].ToString()
		pairs, pairsErr := reply[i+1].ToArray()
		if keyErr != nil || pairsErr != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: fieldMap(pairs)}
		if raw, ok := entry.Fields[scoreField]; ok {
			delete(entry.Fields, scoreField)
			if dist, err := strconv.ParseFloat(raw, 64); err == nil {
				entry.Score = min(1, max(-1, 1-dist))
			}
		}
		out.Entries = append(out.Entries, entry)
	}
	return out, nil
}

func fieldMap(pairs []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, nameErr := pairs[i].ToString()
		value, valueErr := pairs[i+1].ToString()
		if nameErr == nil && valueErr == nil {
			m[name] = value
		}
	}
	return m
}
