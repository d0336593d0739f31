// Package indexing builds the product vector index from the catalog.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/prodsearch/internal/domain"
	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/metrics"
)

// Build stages reported in domain.IndexingError.
const (
	StageEmbed    = "embed"
	StageValidate = "validate"
	StageRecreate = "recreate"
	StageUpsert   = "upsert"
	StageVerify   = "verify"
)

// Defaults for Config.
const (
	DefaultWorkers       = 4
	DefaultBatchSize     = 64
	DefaultRetryInterval = 200 * time.Millisecond
)

// Config tunes the embedding phase of a build.
type Config struct {
	Workers       int
	BatchSize     int
	Retries       int
	RetryInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	return c
}

// Report summarises a successful build.
type Report struct {
	Indexed    int
	Dimensions int
	Duration   time.Duration
}

// Service rebuilds the index. Builds are serialised; Ready is false while one runs
// and after one fails.
type Service struct {
	index  Index
	embed  Embedder
	cfg    Config
	logger *zap.Logger

	mu    sync.Mutex
	ready atomic.Bool
}

// New creates an indexing service.
func New(index Index, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	return &Service{index: index, embed: embed, cfg: cfg.withDefaults(), logger: logger}
}

// Ready reports whether the last build completed successfully and none is running.
func (s *Service) Ready() bool { return s.ready.Load() }

// Build destroys the index, embeds every product and loads the vectors.
func (s *Service) Build(ctx context.Context, cat *catalog.Catalog) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready.Store(false)
	start := time.Now()

	report, err := s.build(ctx, cat)
	report.Duration = time.Since(start)
	metrics.IndexingDuration.Observe(report.Duration.Seconds())

	if err != nil {
		metrics.IndexingRunsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Index build failed",
			zap.Int("products", cat.Len()),
			zap.Duration("duration", report.Duration),
			zap.Error(err),
		)
		return Report{}, err
	}

	metrics.IndexingRunsTotal.WithLabelValues("ok").Inc()
	metrics.IndexedProducts.Set(float64(report.Indexed))
	s.ready.Store(true)

	s.logger.Info("Index build completed",
		zap.Int("indexed", report.Indexed),
		zap.Int("dimensions", report.Dimensions),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Service) build(ctx context.Context, cat *catalog.Catalog) (Report, error) {
	products := cat.All()
	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.EmbeddingText()
	}

	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return Report{}, domain.NewIndexingError(StageEmbed, err)
	}

	dim, err := s.checkDimensions(vectors)
	if err != nil {
		return Report{}, domain.NewIndexingError(StageValidate, err)
	}

	if err = s.index.Recreate(ctx, dim, domain.MetricCosine); err != nil {
		return Report{}, domain.NewIndexingError(StageRecreate, err)
	}

	records := make([]catalog.IndexedVector, len(products))
	for i, p := range products {
		records[i] = catalog.IndexedVector{ID: p.ID, Vector: vectors[i], Payload: p.Payload()}
	}
	if err = s.index.Upsert(ctx, records); err != nil {
		return Report{}, domain.NewIndexingError(StageUpsert, err)
	}

	count, err := s.index.Count(ctx)
	if err != nil {
		return Report{}, domain.NewIndexingError(StageVerify, err)
	}
	if count != len(products) {
		return Report{}, domain.NewIndexingError(StageVerify,
			fmt.Errorf("index holds %d records, catalog has %d", count, len(products)))
	}

	return Report{Indexed: count, Dimensions: dim}, nil
}

// embedAll embeds texts in chunks on a worker pool. Vectors keep input order.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(s.cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for offset := 0; offset < len(texts); offset += s.cfg.BatchSize {
		end := min(offset+s.cfg.BatchSize, len(texts))
		chunk := texts[offset:end]
		off := offset

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			res, err := s.embedChunk(ctx, chunk)
			if err != nil {
				fail(fmt.Errorf("chunk at %d: %w", off, err))
				return
			}
			copy(vectors[off:], res)
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit chunk at %d: %w", off, submitErr))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

func (s *Service) embedChunk(ctx context.Context, chunk []string) ([][]float32, error) {
	var out [][]float32

	op := func() error {
		res, err := domain.EmbedAll(ctx, s.embed, chunk)
		if err != nil {
			if isPermanent(ctx, err) {
				return backoff.Permanent(err)
			}
			s.logger.Warn("Embedding chunk failed, retrying",
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return err
		}
		if len(res.Embeddings) != len(chunk) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d texts: %w",
				len(res.Embeddings), len(chunk), domain.ErrEmbeddingProviderError))
		}
		out = res.Embeddings
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.cfg.Retries)), ctx)

	if err := backoff.Retry(op, policy); err != nil {
		return nil, err //nolint:wrapcheck // caller adds chunk offset
	}
	return out, nil
}

// checkDimensions verifies all vectors share the provider dimension.
// A provider reporting 0 is checked against the first vector.
func (s *Service) checkDimensions(vectors [][]float32) (int, error) {
	dim := domain.DimensionsOf(s.embed)
	if dim == 0 {
		if len(vectors) == 0 {
			return 0, errors.New("embedding dimension unknown: provider reports none and catalog is empty")
		}
		dim = len(vectors[0])
	}
	if dim <= 0 {
		return 0, fmt.Errorf("embedding dimension %d: %w", dim, domain.ErrVectorDimMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("product %d: got %d, want %d: %w", i, len(v), dim, domain.ErrVectorDimMismatch)
		}
	}
	return dim, nil
}

func isPermanent(ctx context.Context, err error) bool {
	return errors.Is(err, domain.ErrInvalidQuery) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() != nil
}
