// Package badger implements an in-process key-value store on BadgerDB.
// It backs the embedding cache when no Redis/Valkey is configured.
package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/db"
)

// KV is a badger-backed key-value store. In-memory unless a directory is given.
type KV struct {
	db *badger.DB
}

// Open opens a store at dir. An empty dir opens an in-memory database.
func Open(dir string, logger *zap.Logger) (*KV, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &zapAdapter{s: logger.Named("badger").Sugar()}
	opts.Compression = options.None

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &KV{db: bdb}, nil
}

// Get retrieves a value by key.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return out, nil
}

// Set stores a value without expiry.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. A non-positive ttl means no expiry.
func (s *KV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Ping reports whether the database is open.
func (s *KV) Ping(_ context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger: database is closed")
	}
	return nil
}

// Close releases the database.
func (s *KV) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger: %w", err)
	}
	return nil
}

// zapAdapter routes badger's printf-style log calls to zap.
type zapAdapter struct {
	s *zap.SugaredLogger
}

var _ badger.Logger = (*zapAdapter)(nil)

func (a *zapAdapter) Errorf(format string, args ...any)   { a.s.Errorf(format, args...) }
func (a *zapAdapter) Warningf(format string, args ...any) { a.s.Warnf(format, args...) }
func (a *zapAdapter) Infof(format string, args ...any)    { a.s.Debugf(format, args...) }
func (a *zapAdapter) Debugf(format string, args ...any)   { a.s.Debugf(format, args...) }
