package httpfetch

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"strconv"
	"strings"
)

// maxSVGHeader bounds how much of a document is read looking for the root
// element.
const maxSVGHeader = 64 << 10

var errNoSVGSize = errors.New("svg root declares no usable width, height or viewBox")

func isSVG(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "image/svg+xml"
}

// svgDimensions reads the root <svg> element of r and returns its size the
// way a browser would render it standalone: explicit width and height win,
// a missing side is derived from the viewBox aspect ratio, and the viewBox
// size is used when neither is given.
func svgDimensions(r io.Reader) (int, int, error) {
	dec := xml.NewDecoder(io.LimitReader(r, maxSVGHeader))
	dec.CharsetReader = func(_ string, in io.Reader) (io.Reader, error) { return in, nil }

	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0, fmt.Errorf("reading svg root: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0, fmt.Errorf("root element is <%s>, not <svg>", start.Name.Local)
		}
		return svgRootSize(start.Attr)
	}
}

func svgRootSize(attrs []xml.Attr) (int, int, error) {
	var width, height, vbWidth, vbHeight float64
	for _, a := range attrs {
		switch a.Name.Local {
		case "width":
			width = svgLength(a.Value)
		case "height":
			height = svgLength(a.Value)
		case "viewBox":
			vbWidth, vbHeight = viewBoxSize(a.Value)
		}
	}

	hasViewBox := vbWidth > 0 && vbHeight > 0
	switch {
	case width > 0 && height > 0:
	case width > 0 && hasViewBox:
		height = width * vbHeight / vbWidth
	case height > 0 && hasViewBox:
		width = height * vbWidth / vbHeight
	case hasViewBox:
		width, height = vbWidth, vbHeight
	default:
		return 0, 0, errNoSVGSize
	}

	w, h := int(math.Round(width)), int(math.Round(height))
	if w <= 0 || h <= 0 {
		return 0, 0, errNoSVGSize
	}
	return w, h, nil
}

// svgLength parses an absolute length in user units or pixels. Relative
// lengths such as percentages yield zero.
func svgLength(v string) float64 {
	v = strings.TrimSuffix(strings.TrimSpace(v), "px")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f <= 0 {
		return 0
	}
	return f
}

func viewBoxSize(v string) (float64, float64) {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != 4 {
		return 0, 0
	}
	return svgLength(fields[2]), svgLength(fields[3])
}
