// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/config"
	"github.com/kailas-cloud/prodsearch/internal/db"
	dbBadger "github.com/kailas-cloud/prodsearch/internal/db/badger"
	dbRedis "github.com/kailas-cloud/prodsearch/internal/db/redis"
	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
	catalogrepo "github.com/kailas-cloud/prodsearch/internal/repository/catalog"
	"github.com/kailas-cloud/prodsearch/internal/repository/embcache"
	"github.com/kailas-cloud/prodsearch/internal/repository/memindex"
	"github.com/kailas-cloud/prodsearch/internal/repository/vectorindex"
	"github.com/kailas-cloud/prodsearch/internal/transport/hashing"
	openaiTransport "github.com/kailas-cloud/prodsearch/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/prodsearch/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/prodsearch/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/prodsearch/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/prodsearch/internal/usecase/search"
)

// vectorIndex is what both index backends provide.
type vectorIndex interface {
	indexinguc.Index
	searchuc.Index
	db.Pinger
}

// App holds the wired services.
type App struct {
	Catalog *catalog.Catalog
	Indexer *indexinguc.Service
	Search  *searchuc.Service
	Health  *healthuc.Service

	logger  *zap.Logger
	closers []func()
}

// New loads the catalog and wires storage, providers and services from cfg.
// Nothing is indexed yet; call BuildIndex.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	metrics.Register()

	cat, err := catalogrepo.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	logger.Info("Catalog loaded",
		zap.String("path", cfg.Catalog.Path),
		zap.Int("products", cat.Len()),
	)

	a := &App{Catalog: cat, logger: logger}

	index, kv, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	embedder := buildEmbedder(cfg, kv, logger)

	if cfg.LLM.APIKey == "" {
		logger.Warn("LLM API key is empty, semantic ranking will report unavailable",
			zap.String("base_url", cfg.LLM.BaseURL),
		)
	}
	ranker := openaiTransport.NewRanker(&openaiTransport.RankerConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Logger:      logger,
	})

	a.Indexer = indexinguc.New(index, embedder, indexinguc.Config{
		Workers:   cfg.Index.Workers,
		BatchSize: cfg.Index.EmbedBatchSize,
		Retries:   cfg.Index.EmbedRetries,
	}, logger)

	a.Search = searchuc.New(cat, index, embedder, ranker, a.Indexer, searchuc.Config{
		LLMTimeout: time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	}, logger)

	a.Health = healthuc.New(index, embedder).WithLLM(ranker).WithIndex(a.Indexer)

	return a, nil
}

// BuildIndex (re)builds the vector index from the catalog.
func (a *App) BuildIndex(ctx context.Context) (indexinguc.Report, error) {
	report, err := a.Indexer.Build(ctx, a.Catalog)
	if err != nil {
		return indexinguc.Report{}, fmt.Errorf("build index: %w", err)
	}
	return report, nil
}

// Close releases storage connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStorage returns the vector index and, when caching is enabled, the KV store backing it.
func (a *App) openStorage(ctx context.Context, cfg *config.Config) (vectorIndex, db.KVStore, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		var kv db.KVStore
		if cfg.Embedding.Cache.Enabled {
			bkv, err := dbBadger.Open(cfg.Embedding.Cache.Dir, a.logger)
			if err != nil {
				return nil, nil, fmt.Errorf("open embedding cache: %w", err)
			}
			a.closers = append(a.closers, func() { _ = bkv.Close() })
			kv = bkv
		}
		return memindex.New(), kv, nil

	case config.DriverRedis, config.DriverValkey:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return nil, nil, fmt.Errorf("database not ready: %w", err)
		}
		a.logger.Info("Connected to database",
			zap.String("driver", cfg.Database.Driver),
			zap.Strings("addrs", cfg.Database.Addrs),
		)

		index := vectorindex.New(store, vectorindex.Config{
			IndexName: cfg.Index.Name,
			KeyPrefix: cfg.Index.KeyPrefix,
			HNSW: vectorindex.HNSWConfig{
				M:           cfg.Index.HNSWM,
				EFConstruct: cfg.Index.HNSWEFConstruct,
			},
		})
		var kv db.KVStore
		if cfg.Embedding.Cache.Enabled {
			kv = store
		}
		return index, kv, nil

	default:
		return nil, nil, errors.New("unknown database driver: " + cfg.Database.Driver)
	}
}

// embedder is the decorated provider used for both products and queries.
type embedder interface {
	domain.Embedder
	HealthCheck(ctx context.Context) error
}

// buildEmbedder assembles the decorator chain: provider -> cache -> instrumented.
func buildEmbedder(cfg *config.Config, kv db.KVStore, logger *zap.Logger) embedder {
	var base domain.Embedder
	model := cfg.Embedding.Model
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		base = openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   cfg.Embedding.Provider,
			Logger:     logger,
		})
	default:
		h := hashing.New(cfg.Embedding.Dimensions)
		model = fmt.Sprintf("hashing-%d", h.Dimensions())
		base = h
	}

	if kv != nil {
		base = embcache.New(base, kv, embcache.Options{
			KeyPrefix: cfg.Embedding.Cache.KeyPrefix + model + ":",
			TTL:       time.Duration(cfg.Embedding.Cache.TTLSec) * time.Second,
		}, metrics.EmbeddingCacheTotal, logger)
	}

	logger.Info("Embedder created",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", model),
		zap.Bool("cache", kv != nil),
	)
	return embeddinguc.NewInstrumentedEmbedder(base, cfg.Embedding.Provider, model, logger)
}
