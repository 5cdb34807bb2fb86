package response

import (
	"time"

	"github.com/user/imagegrab-service/internal/entity"
)

type ImageResponse struct {
	URL      string   `json:"url"`
	FileName string   `json:"file_name,omitempty"`
	SizeKB   *float64 `json:"size_kb,omitempty"`
	Width    int      `json:"width,omitempty"`
	Height   int      `json:"height,omitempty"`
}

// SessionResponse is a DTO for a grab session, mirroring entity.Session
type SessionResponse struct {
	ID             string                  `json:"id"`
	PageURL        string                  `json:"page_url"`
	Status         entity.SessionStatus    `json:"status"` // "loading", "ready", "failed"
	FailureReason  string                  `json:"failure_reason,omitempty"`
	DetailsEnabled bool                    `json:"details_enabled"`
	Thresholds     entity.FilterThresholds `json:"thresholds"`
	SortKey        entity.SortKey          `json:"sort_key,omitempty"`
	Version        int64                   `json:"version"`
	Images         []ImageResponse         `json:"images"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// NewSessionResponse renders s. Image details are left out unless the
// session has them enabled.
func NewSessionResponse(s *entity.Session) SessionResponse {
	images := make([]ImageResponse, len(s.Collection))
	for i, d := range s.Collection {
		images[i] = ImageResponse{URL: d.URL}
		if s.DetailsEnabled {
			images[i].FileName = d.DerivedName
			images[i].SizeKB = d.SizeKB
			images[i].Width = d.Width
			images[i].Height = d.Height
		}
	}
	return SessionResponse{
		ID:             s.ID,
		PageURL:        s.PageURL,
		Status:         s.Status,
		FailureReason:  s.FailureReason,
		DetailsEnabled: s.DetailsEnabled,
		Thresholds:     s.Thresholds,
		SortKey:        s.SortKey,
		Version:        s.Version,
		Images:         images,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}
