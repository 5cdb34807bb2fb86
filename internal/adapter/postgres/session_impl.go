package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/imagegrab-service/internal/entity"
)

// Schema creates the table used by SessionRepoImpl.
const Schema = `
CREATE TABLE IF NOT EXISTS grab_sessions (
	id         TEXT PRIMARY KEY,
	version    BIGINT NOT NULL,
	payload    JSONB NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS grab_sessions_expires_at_idx ON grab_sessions (expires_at);
`

// SessionRepoImpl provides a concrete implementation for the
// SessionRepository interface using PostgreSQL. Snapshots are stored as JSONB
// and expire after the session TTL.
type SessionRepoImpl struct {
	db  *pgxpool.Pool
	ttl time.Duration
}

// NewSessionRepo creates a new instance of SessionRepoImpl.
func NewSessionRepo(db *pgxpool.Pool, ttl time.Duration) *SessionRepoImpl {
	return &SessionRepoImpl{db: db, ttl: ttl}
}

// Migrate creates the sessions table if it does not exist.
func (r *SessionRepoImpl) Migrate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, Schema)
	return err
}

func (r *SessionRepoImpl) Create(ctx context.Context, s *entity.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	// An expired row with the same id is replaced; a live one is kept.
	query := `
		INSERT INTO grab_sessions (id, version, payload, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			version = EXCLUDED.version,
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at
		WHERE grab_sessions.expires_at <= NOW();
	`
	tag, err := r.db.Exec(ctx, query, s.ID, s.Version, payload, r.expiresAt())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *SessionRepoImpl) Get(ctx context.Context, id string) (*entity.Session, error) {
	query := `
		SELECT payload
		FROM grab_sessions
		WHERE id = $1 AND expires_at > NOW();
	`
	var payload []byte
	err := r.db.QueryRow(ctx, query, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	var s entity.Session
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

// Save updates the row only while its version still equals expectedVersion.
func (r *SessionRepoImpl) Save(ctx context.Context, s *entity.Session, expectedVersion int64) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE grab_sessions
		SET version = $2, payload = $3, expires_at = $4
		WHERE id = $1 AND version = $5 AND expires_at > NOW();
	`
	tag, err := r.db.Exec(ctx, query, s.ID, s.Version, payload, r.expiresAt(), expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Tell a missing session apart from a lost race.
	if _, err := r.Get(ctx, s.ID); err != nil {
		return err
	}
	return entity.ErrStaleVersion
}

func (r *SessionRepoImpl) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM grab_sessions WHERE id = $1;`, id)
	return err
}

// PurgeExpired removes expired sessions and returns how many were deleted.
func (r *SessionRepoImpl) PurgeExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM grab_sessions WHERE expires_at <= NOW();`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepoImpl) expiresAt() time.Time {
	return time.Now().Add(r.ttl)
}
