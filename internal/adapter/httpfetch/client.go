package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/metrics"
)

// Client implements the resource-facing repositories over HTTP:
// repository.SizeProber, repository.DimensionLoader and
// repository.ResourceFetcher.
type Client struct {
	http             *http.Client
	probeTimeout     time.Duration
	imageLoadTimeout time.Duration
	fetchTimeout     time.Duration
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

// Options configures the per-request timeouts of a Client.
type Options struct {
	ProbeTimeout     time.Duration
	ImageLoadTimeout time.Duration
	FetchTimeout     time.Duration
}

// NewClient creates a new Client. transport may be nil to use the default.
func NewClient(transport http.RoundTripper, opts Options, m *metrics.Metrics, l *zap.Logger) *Client {
	return &Client{
		http:             &http.Client{Transport: transport},
		probeTimeout:     opts.ProbeTimeout,
		imageLoadTimeout: opts.ImageLoadTimeout,
		fetchTimeout:     opts.FetchTimeout,
		metrics:          m,
		logger:           l,
	}
}

var (
	_ repository.SizeProber      = (*Client)(nil)
	_ repository.DimensionLoader = (*Client)(nil)
	_ repository.ResourceFetcher = (*Client)(nil)
)

// Probe issues a HEAD request and converts the declared Content-Length to
// kilobytes. Any failure is reported as an unknown size.
func (c *Client) Probe(ctx context.Context, url string) (float64, bool) {
	sizeKB, known := c.probe(ctx, url)
	c.metrics.IncProbe(known)
	return sizeKB, known
}

func (c *Client) probe(ctx context.Context, url string) (float64, bool) {
	ctx, cancel := withTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		c.logger.Debug("could not get size", zap.String("url", url), zap.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	header := resp.Header.Get("Content-Length")
	if header == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(header, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return float64(n) / 1024, true
}

// Fetch downloads the full body of url.
func (c *Client) Fetch(ctx context.Context, url string) (*repository.Resource, error) {
	ctx, cancel := withTimeout(ctx, c.fetchTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &repository.Resource{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// ContentType returns the Content-Type declared for url by a HEAD request.
func (c *Client) ContentType(ctx context.Context, url string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.probeTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Header.Get("Content-Type"), nil
}

// do performs a request and rejects non-2xx responses.
func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("received status code %d", resp.StatusCode)
	}
	return resp, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
