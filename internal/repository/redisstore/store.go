// Package redisstore keeps import sessions and commit progress in Redis so
// any API replica can serve any step of an import.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an untouched session survives.
const DefaultTTL = 24 * time.Hour

// Store implements ingest.SessionStore and ingest.ProgressStore.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a store. A non-positive ttl uses DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(id string) string  { return fmt.Sprintf("import:session:%s", id) }
func progressKey(id string) string { return fmt.Sprintf("import:progress:%s", id) }

// Save writes the session and refreshes its expiry.
func (s *Store) Save(ctx context.Context, sess *ingest.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (*ingest.Session, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ingest.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	var sess ingest.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Delete removes the session together with its progress.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, sessionKey(id), progressKey(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func (s *Store) Publish(ctx context.Context, sessionID string, p upload.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress %s: %w", sessionID, err)
	}
	if err := s.rdb.Set(ctx, progressKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store progress %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (*upload.Progress, error) {
	data, err := s.rdb.Get(ctx, progressKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: no progress for %s", ingest.ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}

	var p upload.Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
