package request

import (
	"errors"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/settings"
)

type ThresholdsRequest struct {
	MinSizeKB float64 `json:"min_size_kb"`
	MinWidth  int     `json:"min_width"`
	MinHeight int     `json:"min_height"`
}

type CreateSessionRequest struct {
	PageURL string `json:"page_url"`
	// Thresholds wins over Settings when both are given.
	Thresholds     *ThresholdsRequest `json:"thresholds,omitempty"`
	Settings       map[string]string  `json:"settings,omitempty"`
	DetailsEnabled *bool              `json:"details_enabled,omitempty"`
}

// Resolve returns the thresholds and details flag the grab should use.
func (r CreateSessionRequest) Resolve() (entity.FilterThresholds, bool, error) {
	th, details := settings.Parse(r.Settings)
	if r.Thresholds != nil {
		if r.Thresholds.MinSizeKB < 0 || r.Thresholds.MinWidth < 0 || r.Thresholds.MinHeight < 0 {
			return entity.FilterThresholds{}, false, errors.New("thresholds must not be negative")
		}
		th = entity.FilterThresholds{
			MinSizeKB: r.Thresholds.MinSizeKB,
			MinWidth:  r.Thresholds.MinWidth,
			MinHeight: r.Thresholds.MinHeight,
		}
	}
	if r.DetailsEnabled != nil {
		details = *r.DetailsEnabled
	}
	return th, details, nil
}

type RankRequest struct {
	Key entity.SortKey `json:"key"`
	// Version is the snapshot the client ranked from; 0 skips the check.
	Version int64 `json:"version"`
}

type ArchiveRequest struct {
	Identifiers []string `json:"identifiers"`
}
