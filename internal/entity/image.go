package entity

// RenderedImage is a single <img> element as rendered on a page or frame.
// Width and Height are the intrinsic (natural) dimensions; zero means the
// image has not loaded.
type RenderedImage struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Loaded reports whether both intrinsic dimensions are resolved.
func (r RenderedImage) Loaded() bool {
	return r.Width > 0 && r.Height > 0
}

// ImageDescriptor is the enriched record for one identifier.
type ImageDescriptor struct {
	URL         string   `json:"url"`
	Width       int      `json:"width,omitempty"`
	Height      int      `json:"height,omitempty"`
	SizeKB      *float64 `json:"size_kb,omitempty"` // nil when the probe could not tell
	DerivedName string   `json:"file_name"`
}

// HasDimensions reports whether width and height are known.
func (d ImageDescriptor) HasDimensions() bool {
	return d.Width > 0 && d.Height > 0
}

// Collection is the ordered set of descriptors shown for one grab.
type Collection []ImageDescriptor

// Lookup returns the descriptor for url, if the collection contains it.
func (c Collection) Lookup(url string) (ImageDescriptor, bool) {
	for _, d := range c {
		if d.URL == url {
			return d, true
		}
	}
	return ImageDescriptor{}, false
}

// FilterThresholds holds the minimum constraints for candidate images.
// A zero value means "no constraint" for that dimension.
type FilterThresholds struct {
	MinSizeKB float64 `json:"min_size_kb"`
	MinWidth  int     `json:"min_width"`
	MinHeight int     `json:"min_height"`
}

// ArchiveEntry is one named file inside an archive.
type ArchiveEntry struct {
	Name  string
	Bytes []byte
}

// SortKey selects the ranking order of a collection.
type SortKey string

const (
	SortBySize   SortKey = "size"
	SortByWidth  SortKey = "width"
	SortByHeight SortKey = "height"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortBySize, SortByWidth, SortByHeight:
		return true
	}
	return false
}
