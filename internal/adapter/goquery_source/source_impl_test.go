package goquery_source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
)

type stubLoader map[string][2]int

func (s stubLoader) LoadDimensions(_ context.Context, u string) (int, int, error) {
	for suffix, dims := range s {
		if strings.HasSuffix(u, suffix) {
			return dims[0], dims[1], nil
		}
	}
	return 0, 0, &entity.LoadError{URL: u, Reason: errors.New("404")}
}

func parseDocument(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestImageSources(t *testing.T) {
	base, err := url.Parse("https://example.com/gallery/page.html")
	require.NoError(t, err)

	html := `<html><body>
		<img src="a.png">
		<img src="/root.jpg?x=1">
		<img data-src="lazy.webp">
		<img alt="no source">
		<img src="https://cdn.example.com/remote.gif">
	</body></html>`

	srcs := imageSources(base, parseDocument(t, html))
	assert.Equal(t, []string{
		"https://example.com/gallery/a.png",
		"https://example.com/root.jpg?x=1",
		"https://example.com/gallery/lazy.webp",
		"https://cdn.example.com/remote.gif",
	}, srcs)
}

func TestImageSources_BaseHref(t *testing.T) {
	base, err := url.Parse("https://example.com/page.html")
	require.NoError(t, err)

	srcs := imageSources(base, parseDocument(t, `<head><base href="https://static.example.com/img/"></head><body><img src="x.png"></body>`))
	assert.Equal(t, []string{"https://static.example.com/img/x.png"}, srcs)
}

func TestStaticSource_RenderedImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/page" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<html><body><img src="/big.png"><img src="/broken.png"><img src="data:image/png;base64,AAAA"></body></html>`)
	}))
	defer srv.Close()

	loader := stubLoader{"/big.png": {1920, 1080}}
	src := NewStaticSource(nil, loader, time.Second, zap.NewNop())

	frames, err := src.RenderedImages(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []entity.RenderedImage{
		{Src: srv.URL + "/big.png", Width: 1920, Height: 1080},
		{Src: srv.URL + "/broken.png"},
		{Src: "data:image/png;base64,AAAA"},
	}, frames[0])
}

func TestStaticSource_PageError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	src := NewStaticSource(nil, stubLoader{}, time.Second, zap.NewNop())
	_, err := src.RenderedImages(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
