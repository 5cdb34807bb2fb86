package goquery_source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/utils"
)

// StaticSource fetches a page over plain HTTP, reads its <img> tags and
// resolves each image's intrinsic size by loading the image itself. Images
// that fail to load are reported with zero dimensions, as a browser would.
type StaticSource struct {
	client  *http.Client
	loader  repository.DimensionLoader
	timeout time.Duration
	logger  *zap.Logger
}

func NewStaticSource(transport http.RoundTripper, loader repository.DimensionLoader, pageLoadTimeout time.Duration, l *zap.Logger) *StaticSource {
	return &StaticSource{
		client:  &http.Client{Transport: transport},
		loader:  loader,
		timeout: pageLoadTimeout,
		logger:  l,
	}
}

var _ repository.PageSource = (*StaticSource)(nil)

// RenderedImages returns a single frame holding the page's images.
func (s *StaticSource) RenderedImages(ctx context.Context, pageURL string) ([][]entity.RenderedImage, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing page url: %w", err)
	}

	doc, err := s.fetchPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	srcs := imageSources(base, doc)
	s.logger.Debug("page parsed", zap.String("page", pageURL), zap.Int("images", len(srcs)))

	images := make([]entity.RenderedImage, 0, len(srcs))
	for _, src := range srcs {
		img := entity.RenderedImage{Src: src}
		if utils.IsFetchable(src) {
			w, h, err := s.loader.LoadDimensions(ctx, src)
			if err != nil {
				s.logger.Debug("image did not load", zap.String("src", src), zap.Error(err))
			} else {
				img.Width, img.Height = w, h
			}
		}
		images = append(images, img)
	}
	return [][]entity.RenderedImage{images}, nil
}

func (s *StaticSource) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: received status code %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return doc, nil
}

// imageSources returns the absolute source of every <img> in doc, in document
// order. Lazy-loaded images are read from data-src when src is empty.
func imageSources(base *url.URL, doc *goquery.Document) []string {
	// A <base href> changes how relative sources resolve.
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := utils.ToAbsoluteURL(base, href); err == nil {
			if u, err := url.Parse(resolved); err == nil {
				base = u
			}
		}
	}

	var srcs []string
	doc.Find("img").Each(func(i int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" {
			src = strings.TrimSpace(sel.AttrOr("data-src", ""))
		}
		if src == "" {
			return
		}
		abs, err := utils.ToAbsoluteURL(base, src)
		if err != nil {
			return
		}
		srcs = append(srcs, abs)
	})
	return srcs
}
