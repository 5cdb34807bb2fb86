package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/imagegrab-service/internal/entity"
	"github.com/user/imagegrab-service/internal/repository"
)

var ErrNotInCollection = errors.New("selected image is not part of the collection")

const saveTimeout = 5 * time.Second

// StartRequest describes a new grab.
type StartRequest struct {
	PageURL        string
	Thresholds     entity.FilterThresholds
	DetailsEnabled bool
}

// SessionManager owns grab sessions: it starts grabs in the background and
// applies rank and archive requests to the current snapshot.
type SessionManager interface {
	Start(ctx context.Context, req StartRequest) (*entity.Session, error)
	Regrab(ctx context.Context, id string) (*entity.Session, error)
	Get(ctx context.Context, id string) (*entity.Session, error)
	Rank(ctx context.Context, id string, key entity.SortKey, expectedVersion int64) (*entity.Session, error)
	Archive(ctx context.Context, id string, selected []string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	// Close cancels in-flight grabs and waits for them to return.
	Close()
}

type sessionManager struct {
	repo     repository.SessionRepository
	pipeline *Pipeline
	packager *ArchivePackager
	timeout  time.Duration
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a SessionManager. grabTimeout bounds one whole
// grab; zero means no bound beyond the per-request timeouts.
func NewSessionManager(repo repository.SessionRepository, pipeline *Pipeline, packager *ArchivePackager, grabTimeout time.Duration, l *zap.Logger) SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &sessionManager{
		repo:     repo,
		pipeline: pipeline,
		packager: packager,
		timeout:  grabTimeout,
		logger:   l,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (m *sessionManager) Start(ctx context.Context, req StartRequest) (*entity.Session, error) {
	now := time.Now()
	s := &entity.Session{
		ID:             uuid.NewString(),
		PageURL:        req.PageURL,
		Status:         entity.SessionLoading,
		DetailsEnabled: req.DetailsEnabled,
		Thresholds:     req.Thresholds,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := m.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	m.logger.Info("grab session started", zap.String("session", s.ID), zap.String("page", s.PageURL))
	m.grab(s)
	return s, nil
}

// Regrab starts a fresh grab for an existing session. A grab still running
// for the session is superseded: its result is discarded when it finishes.
func (m *sessionManager) Regrab(ctx context.Context, id string) (*entity.Session, error) {
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	next := cur.Next()
	next.Status = entity.SessionLoading
	next.FailureReason = ""
	next.Collection = nil
	next.SortKey = ""
	if err := m.repo.Save(ctx, next, cur.Version); err != nil {
		return nil, err
	}

	m.logger.Info("grab session restarted", zap.String("session", id), zap.Int64("version", next.Version))
	m.grab(next)
	return next, nil
}

func (m *sessionManager) grab(s *entity.Session) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ctx, cancel := m.grabContext()
		defer cancel()

		collection, err := m.pipeline.Collect(ctx, s.PageURL, s.Thresholds, &sessionObserver{sessionID: s.ID, logger: m.logger})

		next := s.Next()
		if err != nil {
			m.logger.Warn("grab failed", zap.String("session", s.ID), zap.Error(err))
			next.Status = entity.SessionFailed
			next.FailureReason = err.Error()
		} else {
			next.Status = entity.SessionReady
			next.Collection = collection
			next.SortKey = entity.SortBySize
		}

		saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
		defer saveCancel()
		if err := m.repo.Save(saveCtx, next, s.Version); err != nil {
			if errors.Is(err, entity.ErrStaleVersion) || errors.Is(err, entity.ErrSessionNotFound) {
				m.logger.Info("discarding superseded grab result", zap.String("session", s.ID), zap.Int64("version", s.Version))
				return
			}
			m.logger.Error("failed to store grab result", zap.String("session", s.ID), zap.Error(err))
		}
	}()
}

func (m *sessionManager) grabContext() (context.Context, context.CancelFunc) {
	if m.timeout > 0 {
		return context.WithTimeout(m.ctx, m.timeout)
	}
	return context.WithCancel(m.ctx)
}

func (m *sessionManager) Get(ctx context.Context, id string) (*entity.Session, error) {
	return m.repo.Get(ctx, id)
}

func (m *sessionManager) Rank(ctx context.Context, id string, key entity.SortKey, expectedVersion int64) (*entity.Session, error) {
	if !key.Valid() {
		return nil, entity.ErrInvalidSortKey
	}
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == entity.SessionLoading {
		return nil, entity.ErrCollectionLoading
	}
	if expectedVersion != 0 && expectedVersion != cur.Version {
		return nil, entity.ErrStaleVersion
	}

	ranked, err := RankBy(cur.Collection, key)
	if err != nil {
		return nil, err
	}
	next := cur.Next()
	next.Collection = ranked
	next.SortKey = key
	if err := m.repo.Save(ctx, next, cur.Version); err != nil {
		return nil, err
	}
	return next, nil
}

func (m *sessionManager) Archive(ctx context.Context, id string, selected []string) ([]byte, error) {
	if len(selected) == 0 {
		return nil, entity.ErrEmptySelection
	}
	cur, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == entity.SessionLoading {
		return nil, entity.ErrCollectionLoading
	}
	for _, url := range selected {
		if _, ok := cur.Collection.Lookup(url); !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotInCollection, url)
		}
	}

	return m.packager.Build(ctx, selected, func(url string) (string, bool) {
		d, ok := cur.Collection.Lookup(url)
		return d.DerivedName, ok
	})
}

func (m *sessionManager) Delete(ctx context.Context, id string) error {
	return m.repo.Delete(ctx, id)
}

func (m *sessionManager) Close() {
	m.cancel()
	m.wg.Wait()
}

// sessionObserver logs the loading signals of a session's build.
type sessionObserver struct {
	sessionID string
	logger    *zap.Logger
}

func (o *sessionObserver) BeginLoading(context.Context) {
	o.logger.Debug("loading images", zap.String("session", o.sessionID))
}

func (o *sessionObserver) EndLoading(context.Context) {
	o.logger.Debug("images loaded", zap.String("session", o.sessionID))
}
