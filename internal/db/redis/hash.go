package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/prodsearch/internal/db"
)

// HSetMulti stores multiple hashes in a single DoMulti round-trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, len(items))
	for i, item := range items {
		cmds[i] = s.hset(item)
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// hset builds HSET with fields in sorted order so the command is deterministic.
func (s *Store) hset(item db.HashSetItem) rueidis.Completed {
	names := make([]string, 0, len(item.Fields))
	for k := range item.Fields {
		names = append(names, k)
	}
	sort.Strings(names)

	cmd := s.b().Hset().Key(item.Key).FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, item.Fields[k])
	}
	return cmd.Build()
}
