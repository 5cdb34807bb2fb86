package repository

import "context"

// SizeProber learns the byte size of a resource without downloading it.
type SizeProber interface {
	// Probe returns the size in kilobytes. known is false when the size could
	// not be determined; Probe never fails.
	Probe(ctx context.Context, url string) (sizeKB float64, known bool)
}

// DimensionLoader loads a resource far enough to learn its intrinsic size.
type DimensionLoader interface {
	LoadDimensions(ctx context.Context, url string) (width, height int, err error)
}

// Resource is a fetched resource body with its declared content type.
type Resource struct {
	Body        []byte
	ContentType string
}

// ResourceFetcher fetches resources and their metadata.
type ResourceFetcher interface {
	// Fetch downloads the full body of url.
	Fetch(ctx context.Context, url string) (*Resource, error)
	// ContentType issues a metadata-only request and returns the declared type.
	ContentType(ctx context.Context, url string) (string, error)
}
