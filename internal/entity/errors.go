package entity

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelection          = errors.New("please select at least one image")
	ErrNoCandidates            = errors.New("no images matching the filters were found on the page")
	ErrPageUnavailable         = errors.New("could not retrieve images from the specified page")
	ErrSessionNotFound         = errors.New("session not found")
	ErrStaleVersion            = errors.New("collection has changed since it was last read")
	ErrCollectionLoading       = errors.New("collection is still loading")
	ErrInvalidSortKey          = errors.New("sort key must be one of size, width or height")
	ErrFetchFailed             = errors.New("failed to fetch image")
	ErrUnsupportedResourceType = errors.New("unsupported image type")
	ErrImageLoadFailed         = errors.New("failed to load image")
)

// FetchError reports a resource that could not be fetched while building an
// archive or serving a single download.
type FetchError struct {
	URL    string
	Reason error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch image %s: %v", e.URL, e.Reason)
}

func (e *FetchError) Unwrap() []error { return []error{ErrFetchFailed, e.Reason} }

// UnsupportedTypeError reports a content type with no known file extension.
type UnsupportedTypeError struct {
	ContentType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported image type: %s", e.ContentType)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedResourceType }

// LoadError reports an image whose intrinsic dimensions could not be read.
type LoadError struct {
	URL    string
	Reason error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.URL, e.Reason)
}

func (e *LoadError) Unwrap() []error { return []error{ErrImageLoadFailed, e.Reason} }
