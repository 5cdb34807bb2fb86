package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/imagegrab-service/internal/entity"
)

func newTestRepo(t *testing.T, ttl time.Duration) (*SessionRepoImpl, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSessionRepo(client, ttl), mr
}

func TestSessionRepo_CreateGetSave(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	s := &entity.Session{ID: "s1", PageURL: "https://example.com", Status: entity.SessionLoading, Version: 1}
	require.NoError(t, repo.Create(ctx, s))
	assert.Error(t, repo.Create(ctx, s), "duplicate create must fail")
	assert.True(t, mr.Exists("imagegrab:session:s1"))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got.PageURL)
	assert.Equal(t, int64(1), got.Version)

	next := got.Next()
	next.Status = entity.SessionReady
	next.Collection = entity.Collection{{URL: "https://example.com/a.png", Width: 2, Height: 3, DerivedName: "a.png"}}
	require.NoError(t, repo.Save(ctx, next, 1))

	// A writer that still holds version 1 loses.
	stale := got.Next()
	stale.Status = entity.SessionFailed
	assert.ErrorIs(t, repo.Save(ctx, stale, 1), entity.ErrStaleVersion)

	got, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, entity.SessionReady, got.Status)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Collection, 1)
	assert.Equal(t, "a.png", got.Collection[0].DerivedName)
}

func TestSessionRepo_SaveMissing(t *testing.T) {
	repo, _ := newTestRepo(t, time.Hour)

	err := repo.Save(context.Background(), &entity.Session{ID: "ghost", Version: 2}, 1)
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}

func TestSessionRepo_ConcurrentSaveOneWinner(t *testing.T) {
	repo, _ := newTestRepo(t, time.Hour)
	ctx := context.Background()

	base := &entity.Session{ID: "s1", Status: entity.SessionLoading, Version: 1}
	require.NoError(t, repo.Create(ctx, base))

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := base.Next()
			next.FailureReason = string(rune('a' + i))
			errs[i] = repo.Save(ctx, next, 1)
		}()
	}
	wg.Wait()

	var won int
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.True(t, errors.Is(err, entity.ErrStaleVersion), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, won)

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func TestSessionRepo_TTL(t *testing.T) {
	repo, mr := newTestRepo(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))
	assert.Equal(t, time.Minute, mr.TTL("imagegrab:session:s1"))

	mr.FastForward(30 * time.Second)
	require.NoError(t, repo.Save(ctx, &entity.Session{ID: "s1", Version: 2}, 1))
	assert.Equal(t, time.Minute, mr.TTL("imagegrab:session:s1"), "save refreshes the ttl")

	mr.FastForward(2 * time.Minute)
	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)

	// An expired id can be created again.
	assert.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))
}

func TestSessionRepo_Delete(t *testing.T) {
	repo, mr := newTestRepo(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &entity.Session{ID: "s1", Version: 1}))
	require.NoError(t, repo.Delete(ctx, "s1"))
	assert.False(t, mr.Exists("imagegrab:session:s1"))
	assert.NoError(t, repo.Delete(ctx, "s1"), "deleting twice is not an error")

	_, err := repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, entity.ErrSessionNotFound)
}
