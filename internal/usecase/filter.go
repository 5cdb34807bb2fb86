package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
)

// CandidateFilter decides which rendered images of a page qualify under a set
// of thresholds.
type CandidateFilter struct {
	prober      repository.SizeProber
	concurrency int
}

// NewCandidateFilter creates a CandidateFilter. concurrency bounds the number
// of size probes in flight; values below one mean one.
func NewCandidateFilter(prober repository.SizeProber, concurrency int) *CandidateFilter {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CandidateFilter{prober: prober, concurrency: concurrency}
}

// Filter returns the qualifying images in page order, each with the size it
// was rendered at. Dimension checks run first so that no probe is issued for
// an image that is already rejected. An unknown size never excludes an image.
func (f *CandidateFilter) Filter(ctx context.Context, images []entity.RenderedImage, th entity.FilterThresholds) []entity.RenderedImage {
	pass := make([]bool, len(images))
	var probe []int
	for i, img := range images {
		if !img.Loaded() {
			continue
		}
		if th.MinWidth > 0 && img.Width < th.MinWidth {
			continue
		}
		if th.MinHeight > 0 && img.Height < th.MinHeight {
			continue
		}
		if th.MinSizeKB > 0 {
			probe = append(probe, i)
			continue
		}
		pass[i] = true
	}

	if len(probe) > 0 {
		var g errgroup.Group
		g.SetLimit(f.concurrency)
		for _, i := range probe {
			g.Go(func() error {
				sizeKB, known := f.prober.Probe(ctx, images[i].Src)
				pass[i] = !known || sizeKB >= th.MinSizeKB
				return nil
			})
		}
		_ = g.Wait()
	}

	out := make([]entity.RenderedImage, 0, len(images))
	for i, ok := range pass {
		if ok {
			out = append(out, images[i])
		}
	}
	return out
}
