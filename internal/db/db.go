// Package db defines the storage contracts shared by the Redis/Valkey and Badger backends.
package db

import (
	"context"
	"time"
)

// Store is everything the Redis/Valkey backend offers.
// Repositories declare the subset they call.
type Store interface {
	Pinger
	KVStore
	IndexManager
	Searcher
	HSetMulti(ctx context.Context, items []HashSetItem) error
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem is one hash written by a pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// KVStore is a byte-value cache. Get reports a miss as ErrKeyNotFound.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager creates and drops FT indexes.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	// DropIndex with deleteDocs also removes the indexed hashes.
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
}

// Searcher runs FT.SEARCH queries.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}
