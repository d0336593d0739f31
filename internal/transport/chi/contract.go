package chi

import (
	"context"

	"github.com/kailas-cloud/prodsearch/internal/domain/catalog"
	"github.com/kailas-cloud/prodsearch/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/prodsearch/internal/usecase/health"
	indexinguc "github.com/kailas-cloud/prodsearch/internal/usecase/indexing"
	searchuc "github.com/kailas-cloud/prodsearch/internal/usecase/search"
)

// Searcher answers validated search requests.
type Searcher interface {
	Search(ctx context.Context, req *request.Request) (searchuc.Response, error)
}

// Indexer rebuilds the vector index from the catalog.
type Indexer interface {
	Build(ctx context.Context, cat *catalog.Catalog) (indexinguc.Report, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
