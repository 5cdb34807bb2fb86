package usecase

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/adapter/httpfetch"
	"github.com/user/imagegrab-service/internal/entity"
)

func newTestPipeline(source *mockPageSource, prober *mockProber, enricher *mockEnricher) *Pipeline {
	m := newTestMetrics()
	return NewPipeline(
		source,
		"test",
		NewCandidateFilter(prober, 2),
		NewCollectionBuilder(enricher, m, zap.NewNop()),
		m,
		zap.NewNop(),
	)
}

func TestPipeline_CandidatesAcrossFrames(t *testing.T) {
	source := &mockPageSource{}
	source.On("RenderedImages", mock.Anything, "https://page").Return([][]entity.RenderedImage{
		{
			{Src: "https://x/top-small.png", Width: 10, Height: 10},
			{Src: "https://x/top-big.png", Width: 900, Height: 600},
		},
		{
			{Src: "data:image/png;base64,AAAA", Width: 900, Height: 900},
			{Src: "https://y/frame-big.png", Width: 1200, Height: 800},
		},
	}, nil)

	p := newTestPipeline(source, &mockProber{}, &mockEnricher{})
	got, err := p.Candidates(t.Context(), "https://page", entity.FilterThresholds{MinWidth: 800})
	require.NoError(t, err)
	assert.Equal(t, []entity.RenderedImage{
		{Src: "https://x/top-big.png", Width: 900, Height: 600},
		{Src: "https://y/frame-big.png", Width: 1200, Height: 800},
	}, got)
}

func TestPipeline_CandidatesErrors(t *testing.T) {
	t.Run("page unavailable", func(t *testing.T) {
		source := &mockPageSource{}
		source.On("RenderedImages", mock.Anything, mock.Anything).Return(nil, errors.New("net::ERR_NAME_NOT_RESOLVED"))

		_, err := newTestPipeline(source, &mockProber{}, &mockEnricher{}).Candidates(t.Context(), "https://nope", entity.FilterThresholds{})
		assert.ErrorIs(t, err, entity.ErrPageUnavailable)
		assert.Contains(t, err.Error(), "ERR_NAME_NOT_RESOLVED")
	})

	t.Run("no frames", func(t *testing.T) {
		source := &mockPageSource{}
		source.On("RenderedImages", mock.Anything, mock.Anything).Return([][]entity.RenderedImage{}, nil)

		_, err := newTestPipeline(source, &mockProber{}, &mockEnricher{}).Candidates(t.Context(), "https://page", entity.FilterThresholds{})
		assert.ErrorIs(t, err, entity.ErrPageUnavailable)
	})

	t.Run("nothing qualifies", func(t *testing.T) {
		source := &mockPageSource{}
		source.On("RenderedImages", mock.Anything, mock.Anything).Return([][]entity.RenderedImage{
			{{Src: "https://x/a.png", Width: 10, Height: 10}},
		}, nil)

		_, err := newTestPipeline(source, &mockProber{}, &mockEnricher{}).Candidates(t.Context(), "https://page", entity.FilterThresholds{MinWidth: 100})
		assert.ErrorIs(t, err, entity.ErrNoCandidates)
	})
}

func TestPipeline_CollectRanksBySize(t *testing.T) {
	source := &mockPageSource{}
	source.On("RenderedImages", mock.Anything, mock.Anything).Return([][]entity.RenderedImage{
		{
			{Src: "https://x/small.png", Width: 100, Height: 100},
			{Src: "https://x/large.png", Width: 100, Height: 100},
			{Src: "https://x/unknown.png", Width: 100, Height: 100},
		},
	}, nil)

	enricher := &mockEnricher{}
	enricher.On("Enrich", mock.Anything, "https://x/small.png").Return(entity.ImageDescriptor{URL: "https://x/small.png", SizeKB: sizeKB(5)}, nil)
	enricher.On("Enrich", mock.Anything, "https://x/large.png").Return(entity.ImageDescriptor{URL: "https://x/large.png", SizeKB: sizeKB(500)}, nil)
	enricher.On("Enrich", mock.Anything, "https://x/unknown.png").Return(entity.ImageDescriptor{URL: "https://x/unknown.png"}, nil)

	c, err := newTestPipeline(source, &mockProber{}, enricher).Collect(t.Context(), "https://page", entity.FilterThresholds{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://x/unknown.png", "https://x/large.png", "https://x/small.png"}, urls(c))
}

func TestPipeline_CollectAllFailed(t *testing.T) {
	source := &mockPageSource{}
	source.On("RenderedImages", mock.Anything, mock.Anything).Return([][]entity.RenderedImage{
		{{Src: "https://x/broken.png", Width: 100, Height: 100}},
	}, nil)

	enricher := &mockEnricher{}
	enricher.On("Enrich", mock.Anything, mock.Anything).Return(entity.ImageDescriptor{}, errors.New("decode failed"))

	_, err := newTestPipeline(source, &mockProber{}, enricher).Collect(t.Context(), "https://page", entity.FilterThresholds{}, nil)
	assert.ErrorIs(t, err, entity.ErrNoCandidates)
}

func TestPipeline_CollectKeepsRenderedSVG(t *testing.T) {
	const doc = `<svg xmlns="http://www.w3.org/2000/svg" width="1200" height="600"></svg>`
	var gets atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gets.Add(1)
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Content-Length", strconv.Itoa(len(doc)))
		if r.Method == http.MethodGet {
			w.Write([]byte(doc))
		}
	}))
	defer srv.Close()

	hero := srv.URL + "/hero.svg"
	source := &mockPageSource{}
	source.On("RenderedImages", mock.Anything, "https://page").Return([][]entity.RenderedImage{
		{{Src: hero, Width: 1200, Height: 600}},
	}, nil)

	m := newTestMetrics()
	client := httpfetch.NewClient(nil, httpfetch.Options{ProbeTimeout: time.Second, ImageLoadTimeout: time.Second}, m, zap.NewNop())
	p := NewPipeline(
		source,
		"test",
		NewCandidateFilter(client, 2),
		NewCollectionBuilder(NewEnricher(client, client, m), m, zap.NewNop()),
		m,
		zap.NewNop(),
	)

	c, err := p.Collect(t.Context(), "https://page", entity.FilterThresholds{MinWidth: 1000}, nil)
	require.NoError(t, err)
	require.Len(t, c, 1)
	assert.Equal(t, hero, c[0].URL)
	assert.Equal(t, "hero.svg", c[0].DerivedName)
	assert.Equal(t, 1200, c[0].Width)
	assert.Equal(t, 600, c[0].Height)
	require.NotNil(t, c[0].SizeKB)
	assert.InDelta(t, float64(len(doc))/1024, *c[0].SizeKB, 0.0001)
	assert.Zero(t, gets.Load())
}

func TestPipeline_CollectSkipsLoadForRenderedImages(t *testing.T) {
	source := &mockPageSource{}
	source.On("RenderedImages", mock.Anything, mock.Anything).Return([][]entity.RenderedImage{
		{
			{Src: "https://x/hero.svg", Width: 1200, Height: 600},
			{Src: "https://x/logo.avif", Width: 300, Height: 300},
		},
	}, nil)
	prober := &mockProber{}
	prober.On("Probe", mock.Anything, mock.Anything).Return(0.0, false)
	loader := &mockLoader{}

	m := newTestMetrics()
	p := NewPipeline(source, "test", NewCandidateFilter(prober, 2), NewCollectionBuilder(NewEnricher(loader, prober, m), m, zap.NewNop()), m, zap.NewNop())

	c, err := p.Collect(t.Context(), "https://page", entity.FilterThresholds{}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"https://x/hero.svg", "https://x/logo.avif"}, urls(c))
	loader.AssertNotCalled(t, "LoadDimensions", mock.Anything, mock.Anything)
}
