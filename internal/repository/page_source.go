package repository

import (
	"context"

	"github.com/user/imagegrab-service/internal/entity"
)

// PageSource produces the rendered images of a page.
type PageSource interface {
	// RenderedImages loads pageURL and returns its images grouped per frame,
	// in frame order, each group in document order.
	RenderedImages(ctx context.Context, pageURL string) ([][]entity.RenderedImage, error)
}
