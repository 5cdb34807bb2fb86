package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/imagegrab-service/internal/entity"
)

const (
	sessionKeyPrefix = "imagegrab:session:"
	maxCASRetries    = 3
)

// SessionRepoImpl stores session snapshots as JSON values with a TTL.
type SessionRepoImpl struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionRepo creates a new instance of SessionRepoImpl.
func NewSessionRepo(client *redis.Client, ttl time.Duration) *SessionRepoImpl {
	return &SessionRepoImpl{client: client, ttl: ttl}
}

func (r *SessionRepoImpl) generateKey(id string) string {
	return fmt.Sprintf("%s%s", sessionKeyPrefix, id)
}

// Create stores a new session. SETNX keeps an existing session untouched.
func (r *SessionRepoImpl) Create(ctx context.Context, s *entity.Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.generateKey(s.ID), payload, r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *SessionRepoImpl) Get(ctx context.Context, id string) (*entity.Session, error) {
	payload, err := r.client.Get(ctx, r.generateKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
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

// Save compares the stored version with expectedVersion inside a WATCH
// transaction so that concurrent writers cannot both succeed.
func (r *SessionRepoImpl) Save(ctx context.Context, s *entity.Session, expectedVersion int64) error {
	key := r.generateKey(s.ID)
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return entity.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		var stored struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(current, &stored); err != nil {
			return fmt.Errorf("decoding session %s: %w", s.ID, err)
		}
		if stored.Version != expectedVersion {
			return entity.ErrStaleVersion
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxCASRetries; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	// Another writer kept winning the race.
	return entity.ErrStaleVersion
}

func (r *SessionRepoImpl) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.generateKey(id)).Err()
}
