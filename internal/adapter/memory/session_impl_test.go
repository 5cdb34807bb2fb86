package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/imagegrab-service/internal/entity"
)

func TestSessionRepo_CreateGetSave(t *testing.T) {
	repo := NewSessionRepo(time.Hour)
	ctx := context.Background()

	s := &entity.Session{ID: "s1", PageURL: "https://example.com", Status: entity.SessionLoading, Version: 1}
	require.NoError(t, repo.Create(ctx, s))
	assert.Error(t, repo.Create(ctx, s), "duplicate create must fail")

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)

	next := got.Next()
	next.Status = entity.SessionReady
	require.NoError(t, repo.Save(ctx, next, 1))

	// A writer that still holds version 1 loses.
	stale := got.Next()
	stale.Status = entity.SessionFailed
	assert.ErrorIs(t, repo.Save(ctx, stale, 1), entity.ErrStaleVersion)

	got, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionReady, got.Status)
	assert.Equal(t, int64(2), got.Version)
}

func TestSessionRepo_GetReturnsCopy(t *testing.T) {
	repo := NewSessionRepo(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	got.Version = 99

	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Version)
}

func TestSessionRepo_Expiry(t *testing.T) {
	repo := NewSessionRepo(time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))

	now = now.Add(2 * time.Minute)
	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Save(ctx, &entity.Session{ID: "s1", Version: 2}, 1), entity.ErrSessionNotFound)

	n, err := repo.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSessionRepo_Delete(t *testing.T) {
	repo := NewSessionRepo(time.Hour)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))

	require.NoError(t, repo.Delete(ctx, "s1"))
	require.NoError(t, repo.Delete(ctx, "s1"))

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}
