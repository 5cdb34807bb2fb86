package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/user/imagegrab-service/internal/entity"
)

// SessionRepoImpl keeps sessions in process memory. Entries expire after the
// configured TTL.
type SessionRepoImpl struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]storedSession
}

type storedSession struct {
	session   entity.Session
	expiresAt time.Time
}

// NewSessionRepo creates a new in-memory session repository.
func NewSessionRepo(ttl time.Duration) *SessionRepoImpl {
	return &SessionRepoImpl{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (r *SessionRepoImpl) Create(_ context.Context, s *entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(s.ID); ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	r.store(s)
	return nil
}

func (r *SessionRepoImpl) Get(_ context.Context, id string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.live(id)
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	s := stored.session
	return &s, nil
}

func (r *SessionRepoImpl) Save(_ context.Context, s *entity.Session, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.live(s.ID)
	if !ok {
		return entity.ErrSessionNotFound
	}
	if stored.session.Version != expectedVersion {
		return entity.ErrStaleVersion
	}
	r.store(s)
	return nil
}

func (r *SessionRepoImpl) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// PurgeExpired drops every expired session and returns how many were removed.
func (r *SessionRepoImpl) PurgeExpired(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, stored := range r.sessions {
		if r.expired(stored) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// live must be called with r.mu held.
func (r *SessionRepoImpl) live(id string) (storedSession, bool) {
	stored, ok := r.sessions[id]
	if !ok || r.expired(stored) {
		return storedSession{}, false
	}
	return stored, true
}

func (r *SessionRepoImpl) expired(s storedSession) bool {
	return r.ttl > 0 && !r.now().Before(s.expiresAt)
}

func (r *SessionRepoImpl) store(s *entity.Session) {
	r.sessions[s.ID] = storedSession{session: *s, expiresAt: r.now().Add(r.ttl)}
}
