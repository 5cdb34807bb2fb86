package usecase

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/metrics"
	"github.com/user/imagegrab-service/pkg/utils"
)

const (
	// ArchiveFileName is the name callers should persist the archive under.
	ArchiveFileName = "images.zip"

	fallbackEntryName = "image"
)

// NameLookup returns the derived name recorded for an identifier, if any.
type NameLookup func(url string) (string, bool)

// ArchivePackager fetches selected images and packs them into one zip.
type ArchivePackager struct {
	fetcher     repository.ResourceFetcher
	concurrency int
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

func NewArchivePackager(fetcher repository.ResourceFetcher, concurrency int, m *metrics.Metrics, l *zap.Logger) *ArchivePackager {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ArchivePackager{fetcher: fetcher, concurrency: concurrency, metrics: m, logger: l}
}

// Build fetches every selected identifier and returns the zip bytes. The
// first fetch failure aborts the whole batch with an *entity.FetchError and
// no archive is produced. Entries keep the selection order.
func (p *ArchivePackager) Build(ctx context.Context, selected []string, names NameLookup) ([]byte, error) {
	if len(selected) == 0 {
		return nil, entity.ErrEmptySelection
	}

	entries, err := p.fetchAll(ctx, selected, names)
	if err != nil {
		p.metrics.IncArchive(false)
		p.logger.Warn("archive build aborted", zap.Int("selected", len(selected)), zap.Error(err))
		return nil, err
	}

	archive, err := writeZip(entries)
	if err != nil {
		p.metrics.IncArchive(false)
		return nil, fmt.Errorf("writing archive: %w", err)
	}

	p.metrics.IncArchive(true)
	p.logger.Info("archive built", zap.Int("entries", len(entries)), zap.Int("bytes", len(archive)))
	return archive, nil
}

func (p *ArchivePackager) fetchAll(ctx context.Context, selected []string, names NameLookup) ([]entity.ArchiveEntry, error) {
	bodies := make([][]byte, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, url := range selected {
		g.Go(func() error {
			res, err := p.fetcher.Fetch(gctx, url)
			if err != nil {
				return &entity.FetchError{URL: url, Reason: err}
			}
			bodies[i] = res.Body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entryNames := uniqueNames(selected, names)
	entries := make([]entity.ArchiveEntry, len(selected))
	for i := range selected {
		entries[i] = entity.ArchiveEntry{Name: entryNames[i], Bytes: bodies[i]}
	}
	return entries, nil
}

// uniqueNames picks an entry name per identifier and disambiguates repeats
// with a numeric suffix: img.png, img (1).png, img (2).png.
func uniqueNames(selected []string, names NameLookup) []string {
	used := make(map[string]struct{}, len(selected))
	out := make([]string, len(selected))
	for i, url := range selected {
		base := entryName(url, names)
		name := base
		ext := path.Ext(base)
		stem := strings.TrimSuffix(base, ext)
		for n := 1; ; n++ {
			if _, taken := used[strings.ToLower(name)]; !taken {
				break
			}
			name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		used[strings.ToLower(name)] = struct{}{}
		out[i] = name
	}
	return out
}

func entryName(url string, names NameLookup) string {
	if names != nil {
		if name, ok := names(url); ok && name != "" {
			return name
		}
	}
	if name := utils.DerivedName(url); name != "" {
		return name
	}
	return fallbackEntryName
}

func writeZip(entries []entity.ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	now := time.Now()
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(e.Bytes); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
