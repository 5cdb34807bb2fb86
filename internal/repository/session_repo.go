package repository

import (
	"context"

	"github.com/user/imagegrab-service/internal/entity"
)

// SessionRepository stores versioned session snapshots.
type SessionRepository interface {
	// Create stores a new session. The session must not exist yet.
	Create(ctx context.Context, session *entity.Session) error
	// Get returns the current snapshot or entity.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*entity.Session, error)
	// Save replaces the stored snapshot only if its version equals
	// expectedVersion, otherwise it returns entity.ErrStaleVersion.
	Save(ctx context.Context, session *entity.Session, expectedVersion int64) error
	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error
}
