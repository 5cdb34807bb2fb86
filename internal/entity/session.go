package entity

import "time"

type SessionStatus string

const (
	SessionLoading SessionStatus = "loading"
	SessionReady   SessionStatus = "ready"
	SessionFailed  SessionStatus = "failed"
)

// Session is an immutable snapshot of one grab. Every change is stored as a
// copy with Version incremented by one.
type Session struct {
	ID             string           `json:"id"`
	PageURL        string           `json:"page_url"`
	Status         SessionStatus    `json:"status"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	DetailsEnabled bool             `json:"details_enabled"`
	Thresholds     FilterThresholds `json:"thresholds"`
	SortKey        SortKey          `json:"sort_key,omitempty"`
	Version        int64            `json:"version"`
	Collection     Collection       `json:"collection"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Next returns a copy of s with the version bumped. The collection slice is
// copied so the previous snapshot stays untouched.
func (s *Session) Next() *Session {
	next := *s
	next.Version++
	next.UpdatedAt = time.Now()
	if s.Collection != nil {
		next.Collection = append(Collection(nil), s.Collection...)
	}
	return &next
}
