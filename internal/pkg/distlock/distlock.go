// Package distlock serializes work on a single import session across
// processes. Redis is preferred; Postgres advisory locks and an in-process
// lock table are fallbacks for deployments without Redis and for the CLI.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned by Do when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another process")

// DistLock is the interface for distributed locking.
// Implementations must be safe for use from a single goroutine;
// concurrent use across goroutines requires separate lock instances.
type DistLock interface {
	// Acquire tries to acquire the lock. Returns true if successful.
	Acquire(ctx context.Context) (bool, error)
	// Release releases the lock if we still own it.
	Release(ctx context.Context) error
}

// Factory mints a fresh lock instance for a key.
type Factory func(key string) DistLock

// NewFactory picks the best available backend once: Redis, then Postgres,
// then an in-process lock table.
func NewFactory(redisClient *redis.Client, db *sql.DB, ttl time.Duration) Factory {
	local := NewLocalTable()
	return func(key string) DistLock {
		return NewLock(redisClient, db, local, key, ttl)
	}
}

// NewLock creates a distributed lock using the best available backend.
func NewLock(redisClient *redis.Client, db *sql.DB, local *LocalTable, key string, ttl time.Duration) DistLock {
	switch {
	case redisClient != nil:
		return NewRedisLock(redisClient, key, ttl)
	case db != nil:
		return NewPGAdvisoryLock(db, key)
	}
	return local.Lock(key)
}

// Do runs fn while holding l. It does not wait: a held lock yields
// ErrNotAcquired.
func Do(ctx context.Context, l DistLock, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	defer func() {
		// Release even when ctx was cancelled mid-run.
		_ = l.Release(context.WithoutCancel(ctx))
	}()
	return fn(ctx)
}

// =============================================================================
// PostgreSQL Advisory Lock (fallback when Redis is unavailable)
// =============================================================================
// pg_try_advisory_lock is scoped to a database session, so the lock pins one
// pooled connection from Acquire until Release. If the connection drops the
// server releases the lock.

// PGAdvisoryLock implements DistLock using PostgreSQL advisory locks.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock creates a PG advisory lock with a deterministic lock ID
// derived from the given key string.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{
		db:     db,
		lockID: int64(h.Sum64()),
	}
}

// Acquire tries to acquire the advisory lock. Returns true if successful.
// Uses pg_try_advisory_lock which returns immediately (non-blocking).
func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

// Release releases the advisory lock and returns the pinned connection.
func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}

// =============================================================================
// In-process lock table (single binary, no shared backend)
// =============================================================================

// LocalTable tracks held keys for LocalLock instances minted from it.
type LocalTable struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalTable() *LocalTable {
	return &LocalTable{held: make(map[string]bool)}
}

// Lock returns a lock on key within this table.
func (t *LocalTable) Lock(key string) *LocalLock {
	return &LocalLock{table: t, key: key}
}

// LocalLock implements DistLock within one process.
type LocalLock struct {
	table *LocalTable
	key   string
	owned bool
}

func (l *LocalLock) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.table.held[l.key] {
		return false, nil
	}
	l.table.held[l.key] = true
	l.owned = true
	return true, nil
}

func (l *LocalLock) Release(ctx context.Context) error {
	l.table.mu.Lock()
	defer l.table.mu.Unlock()
	if l.owned {
		delete(l.table.held, l.key)
		l.owned = false
	}
	return nil
}
