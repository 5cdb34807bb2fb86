package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
	"github.com/user/imagegrab-service/pkg/utils"
)

const fallbackDownloadName = "downloaded_image"

// extensions maps declared image content types to file extensions.
var extensions = []struct {
	contentType string
	ext         string
}{
	{"image/jpeg", ".jpg"},
	{"image/png", ".png"},
	{"image/gif", ".gif"},
	{"image/bmp", ".bmp"},
	{"image/webp", ".webp"},
}

// ExtensionFor returns the file extension for a declared content type.
func ExtensionFor(contentType string) (string, error) {
	ct := strings.ToLower(contentType)
	for _, e := range extensions {
		if strings.Contains(ct, e.contentType) {
			return e.ext, nil
		}
	}
	return "", &entity.UnsupportedTypeError{ContentType: contentType}
}

// Downloader serves a single image as a named file.
type Downloader struct {
	fetcher repository.ResourceFetcher
}

func NewDownloader(fetcher repository.ResourceFetcher) *Downloader {
	return &Downloader{fetcher: fetcher}
}

// Download resolves the image type from its declared content type, names the
// file (appending the extension when missing) and fetches its bytes.
func (d *Downloader) Download(ctx context.Context, url, name string) (*entity.ArchiveEntry, error) {
	contentType, err := d.fetcher.ContentType(ctx, url)
	if err != nil {
		return nil, &entity.FetchError{URL: url, Reason: err}
	}
	ext, err := ExtensionFor(contentType)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = utils.DerivedName(url)
	}
	if name == "" {
		name = fallbackDownloadName
	}
	if !strings.HasSuffix(strings.ToLower(name), ext) {
		name += ext
	}

	res, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &entity.FetchError{URL: url, Reason: err}
	}
	if len(res.Body) == 0 {
		return nil, &entity.FetchError{URL: url, Reason: errors.New("empty response body, try opening the image in a new tab and saving it manually")}
	}
	return &entity.ArchiveEntry{Name: name, Bytes: res.Body}, nil
}
