package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/metrics"
	"github.com/user/imagegrab-service/pkg/utils"
)

// Pipeline runs one grab end to end: render the page, filter every frame,
// build the collection and rank it by size.
type Pipeline struct {
	source     repository.PageSource
	sourceName string
	filter     *CandidateFilter
	builder    *CollectionBuilder
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewPipeline(source repository.PageSource, sourceName string, filter *CandidateFilter, builder *CollectionBuilder, m *metrics.Metrics, l *zap.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		sourceName: sourceName,
		filter:     filter,
		builder:    builder,
		metrics:    m,
		logger:     l,
	}
}

// Candidates renders pageURL and returns the qualifying images of all frames,
// concatenated in frame order.
func (p *Pipeline) Candidates(ctx context.Context, pageURL string, th entity.FilterThresholds) ([]entity.RenderedImage, error) {
	start := time.Now()
	frames, err := p.source.RenderedImages(ctx, pageURL)
	p.metrics.PageLoadDuration.WithLabelValues(p.sourceName).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrPageUnavailable, err)
	}
	if len(frames) == 0 {
		return nil, entity.ErrPageUnavailable
	}

	var candidates []entity.RenderedImage
	for i, frame := range frames {
		qualified := p.filter.Filter(ctx, frame, th)
		p.logger.Debug("frame filtered",
			zap.String("page", pageURL),
			zap.Int("frame", i),
			zap.Int("rendered", len(frame)),
			zap.Int("qualified", len(qualified)),
		)
		for _, img := range qualified {
			if !utils.IsFetchable(img.Src) {
				p.logger.Debug("skipping inline image", zap.Int("frame", i))
				continue
			}
			candidates = append(candidates, img)
		}
	}
	if len(candidates) == 0 {
		return nil, entity.ErrNoCandidates
	}
	return candidates, nil
}

// Collect runs the whole grab and returns a collection ranked by size.
func (p *Pipeline) Collect(ctx context.Context, pageURL string, th entity.FilterThresholds, observer LoadingObserver) (entity.Collection, error) {
	candidates, err := p.Candidates(ctx, pageURL, th)
	if err != nil {
		return nil, err
	}

	collection, err := p.builder.Build(ctx, candidates, observer)
	if err != nil {
		return nil, err
	}
	if len(collection) == 0 {
		return nil, entity.ErrNoCandidates
	}

	p.logger.Info("collection built",
		zap.String("page", pageURL),
		zap.Int("candidates", len(candidates)),
		zap.Int("images", len(collection)),
	)
	return RankBy(collection, entity.SortBySize)
}
