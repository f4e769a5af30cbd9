package services

import (
	"context"
	"time"

	"github.com/AtRiskMedia/spabook-go/internal/domain/query"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/caching/querycache"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/spabook-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/spabook-go/pkg/config"
)

// PrefetchService runs one route step's queries against the request cache.
type PrefetchService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	cacheOpts   querycache.Options
}

// NewPrefetchService creates a new prefetch service
func NewPrefetchService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PrefetchService {
	return &PrefetchService{
		logger:      logger,
		perfTracker: perfTracker,
		cacheOpts: querycache.Options{
			StaleTime:   config.QueryStaleTime,
			Concurrency: config.PrefetchConcurrency,
			Logger:      logger,
		},
	}
}

// NewRequestCache creates the cache owned by a single request.
func (s *PrefetchService) NewRequestCache() *querycache.Cache {
	return querycache.New(s.cacheOpts)
}

// Prefetch fetches descriptors concurrently into cache and returns a snapshot
// of exactly those queries. A route without queries is NotApplicable. Failed
// queries appear as error entries; nothing is returned as an error.
func (s *PrefetchService) Prefetch(ctx context.Context, cache *querycache.Cache, routeID, requestID string, descriptors []query.Descriptor) query.LoaderResult {
	if len(descriptors) == 0 {
		return query.NotApplicable{}
	}

	marker := s.perfTracker.StartOperation("prefetch_"+routeID, requestID)
	defer s.perfTracker.CompleteOperation(marker)
	start := time.Now()

	cache.PrefetchAll(ctx, descriptors...)
	snapshot := cache.Dehydrate(query.Keys(descriptors)...)

	failed := 0
	for _, q := range snapshot.Queries {
		if q.State.Status == query.StatusError {
			failed++
		}
	}
	marker.AddMetadata("queries", len(snapshot.Queries))
	marker.AddMetadata("failed", failed)

	s.logger.WithContext(ctx, logging.ChannelQuery).Debug("Route prefetch completed",
		"route", routeID, "queries", len(snapshot.Queries), "failed", failed, "duration", time.Since(start))

	return query.Ok{Snapshot: snapshot}
}
