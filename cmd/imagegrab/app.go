package main

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/adapter/chromedp_source"
	"github.com/user/imagegrab-service/internal/adapter/goquery_source"
	"github.com/user/imagegrab-service/internal/adapter/httpfetch"
	"github.com/user/imagegrab-service/internal/proxy"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/internal/usecase"
	"github.com/user/imagegrab-service/pkg/config"
	"github.com/user/imagegrab-service/pkg/metrics"
)

// core is the grab stack shared by the server and the one-shot CLI.
type core struct {
	client     *httpfetch.Client
	pipeline   *usecase.Pipeline
	packager   *usecase.ArchivePackager
	downloader *usecase.Downloader
	close      func()
}

func newCore(cfg *config.Config, source string, m *metrics.Metrics, logger *zap.Logger) (*core, error) {
	proxyManager := proxy.NewManager(cfg.ProxyList(), cfg.UserAgentList(), 0)
	transport := proxyManager.Transport(http.DefaultTransport.(*http.Transport).Clone())

	client := httpfetch.NewClient(transport, httpfetch.Options{
		ProbeTimeout:     cfg.ProbeTimeout(),
		ImageLoadTimeout: cfg.ImageLoadTimeout(),
		FetchTimeout:     cfg.FetchTimeout(),
	}, m, logger)

	var (
		pageSource repository.PageSource
		closeFn    = func() {}
	)
	switch source {
	case "browser":
		bs := chromedp_source.NewBrowserSource(cfg.MaxConcurrency, cfg.PageLoadTimeout(), proxyManager, logger)
		pageSource, closeFn = bs, bs.Close
	case "static":
		pageSource = goquery_source.NewStaticSource(transport, client, cfg.PageLoadTimeout(), logger)
	default:
		return nil, fmt.Errorf("unknown page source %q, expected browser or static", source)
	}

	filter := usecase.NewCandidateFilter(client, cfg.FilterProbeConcurrency)
	builder := usecase.NewCollectionBuilder(usecase.NewEnricher(client, client, m), m, logger)

	return &core{
		client:     client,
		pipeline:   usecase.NewPipeline(pageSource, source, filter, builder, m, logger),
		packager:   usecase.NewArchivePackager(client, cfg.ArchiveFetchConcurrency, m, logger),
		downloader: usecase.NewDownloader(client),
		close:      closeFn,
	}, nil
}
