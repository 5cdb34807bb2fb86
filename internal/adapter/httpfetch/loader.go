package httpfetch

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/user/imagegrab-service/internal/entity"
)

// LoadDimensions fetches url and decodes only the image header to learn its
// intrinsic size. SVG documents are sized from their root element. The whole load is bounded by the image load timeout and any
// failure is returned as an *entity.LoadError.
func (c *Client) LoadDimensions(ctx context.Context, url string) (int, int, error) {
	ctx, cancel := withTimeout(ctx, c.imageLoadTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return 0, 0, &entity.LoadError{URL: url, Reason: err}
	}
	defer resp.Body.Close()

	if isSVG(resp.Header.Get("Content-Type")) {
		w, h, err := svgDimensions(resp.Body)
		if err != nil {
			return 0, 0, &entity.LoadError{URL: url, Reason: err}
		}
		return w, h, nil
	}

	cfg, format, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, &entity.LoadError{URL: url, Reason: fmt.Errorf("decoding image header: %w", err)}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, &entity.LoadError{URL: url, Reason: fmt.Errorf("%s image has no dimensions", format)}
	}
	return cfg.Width, cfg.Height, nil
}
