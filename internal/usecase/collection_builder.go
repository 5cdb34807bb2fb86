package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/pkg/metrics"
)

// LoadingObserver is notified around a collection build so that the
// rendering surface can show progress.
type LoadingObserver interface {
	BeginLoading(ctx context.Context)
	EndLoading(ctx context.Context)
}

// ImageEnricher resolves one candidate to a descriptor.
type ImageEnricher interface {
	Enrich(ctx context.Context, img entity.RenderedImage) (entity.ImageDescriptor, error)
}

// CollectionBuilder turns a list of candidates into a Collection.
type CollectionBuilder struct {
	enricher ImageEnricher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewCollectionBuilder(enricher ImageEnricher, m *metrics.Metrics, l *zap.Logger) *CollectionBuilder {
	return &CollectionBuilder{enricher: enricher, metrics: m, logger: l}
}

// Build enriches candidates one at a time, in order, and returns a new
// Collection. A source seen twice is enriched once. Candidates that fail to
// load are logged and left out. A cancelled context stops the build and
// returns ctx.Err().
func (b *CollectionBuilder) Build(ctx context.Context, candidates []entity.RenderedImage, observer LoadingObserver) (entity.Collection, error) {
	if observer != nil {
		observer.BeginLoading(ctx)
		defer observer.EndLoading(ctx)
	}

	seen := make(map[string]struct{}, len(candidates))
	collection := make(entity.Collection, 0, len(candidates))
	for _, img := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, dup := seen[img.Src]; dup {
			continue
		}
		seen[img.Src] = struct{}{}

		desc, err := b.enricher.Enrich(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn("skipping image that failed to load", zap.String("url", img.Src), zap.Error(err))
			continue
		}
		collection = append(collection, desc)
	}

	b.metrics.CollectionsBuilt.Inc()
	b.metrics.CollectionSize.Observe(float64(len(collection)))
	return collection, nil
}
