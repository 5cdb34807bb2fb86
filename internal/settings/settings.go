// Package settings reads the key-value settings store that controls the
// grab filters and detail rendering.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/user/imagegrab-service/internal/entity"
)

const (
	KeyEnableMinSize   = "enable_minImageSizeKb"
	KeyMinSize         = "minImageSizeKb"
	KeyEnableMinWidth  = "enable_minImageWidthPx"
	KeyMinWidth        = "minImageWidthPx"
	KeyEnableMinHeight = "enable_minImageHeightPx"
	KeyMinHeight       = "minImageHeightPx"
	KeyEnableDetails   = "enable_imageDetails"
)

// DefaultFile is where the CLI keeps its settings.
const DefaultFile = ".imagegrab.yaml"

var ErrUnknownKey = errors.New("unknown settings key")

var knownKeys = []string{
	KeyEnableMinSize, KeyMinSize,
	KeyEnableMinWidth, KeyMinWidth,
	KeyEnableMinHeight, KeyMinHeight,
	KeyEnableDetails,
}

// Store is the string-valued settings map. Booleans are stored as "true".
type Store map[string]string

// Keys returns every key the store understands.
func Keys() []string {
	return slices.Clone(knownKeys)
}

// Parse derives the filter thresholds and the details flag from raw settings.
// A disabled or unparseable threshold is 0; negative and non-finite values
// clamp to 0.
func Parse(raw map[string]string) (entity.FilterThresholds, bool) {
	s := Store(raw)
	th := entity.FilterThresholds{}
	if s.enabled(KeyEnableMinSize) {
		v, err := strconv.ParseFloat(strings.TrimSpace(s[KeyMinSize]), 64)
		if err == nil && v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
			th.MinSizeKB = v
		}
	}
	if s.enabled(KeyEnableMinWidth) {
		th.MinWidth = s.pixels(KeyMinWidth)
	}
	if s.enabled(KeyEnableMinHeight) {
		th.MinHeight = s.pixels(KeyMinHeight)
	}
	return th, s.enabled(KeyEnableDetails)
}

func (s Store) enabled(key string) bool {
	return s[key] == "true"
}

// pixels parses a leading integer the way a form field would: "800px" is 800.
func (s Store) pixels(key string) int {
	v := strings.TrimSpace(s[key])
	end := 0
	if end < len(v) && (v[end] == '-' || v[end] == '+') {
		end++
	}
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Set stores value under key after checking the key is known.
func (s Store) Set(key, value string) error {
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	s[key] = value
	return nil
}

// Load reads the YAML settings file. A missing file is an empty store.
func Load(afs afero.Fs, path string) (Store, error) {
	data, err := afero.ReadFile(afs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return Store{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	s := Store{}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes the store as YAML.
func Save(afs afero.Fs, path string, s Store) error {
	data, err := yaml.Marshal(map[string]string(s))
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := afero.WriteFile(afs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing settings %s: %w", path, err)
	}
	return nil
}
