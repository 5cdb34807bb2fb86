package usecase

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/metrics"
	"github.com/user/imagegrab-service/pkg/utils"
)

// Enricher resolves an identifier to a full ImageDescriptor.
type Enricher struct {
	loader  repository.DimensionLoader
	prober  repository.SizeProber
	metrics *metrics.Metrics
}

func NewEnricher(loader repository.DimensionLoader, prober repository.SizeProber, m *metrics.Metrics) *Enricher {
	return &Enricher{loader: loader, prober: prober, metrics: m}
}

// Enrich resolves img to a descriptor. The rendered size is kept when the
// page already reported one; the resource is only loaded for its intrinsic
// dimensions when it was not. The byte size is probed concurrently. A failed
// load is returned as an error; an unknown size is not.
func (e *Enricher) Enrich(ctx context.Context, img entity.RenderedImage) (entity.ImageDescriptor, error) {
	start := time.Now()
	url := img.Src
	desc := entity.ImageDescriptor{
		URL:         url,
		DerivedName: utils.DerivedName(url),
	}

	g, gctx := errgroup.WithContext(ctx)
	if img.Loaded() {
		desc.Width, desc.Height = img.Width, img.Height
	} else {
		g.Go(func() error {
			w, h, err := e.loader.LoadDimensions(gctx, url)
			if err != nil {
				return err
			}
			desc.Width, desc.Height = w, h
			return nil
		})
	}
	g.Go(func() error {
		if sizeKB, known := e.prober.Probe(gctx, url); known {
			desc.SizeKB = &sizeKB
		}
		return nil
	})
	err := g.Wait()

	e.metrics.EnrichDuration.Observe(time.Since(start).Seconds())
	e.metrics.IncEnrichment(err == nil)
	if err != nil {
		return entity.ImageDescriptor{}, err
	}
	return desc, nil
}
