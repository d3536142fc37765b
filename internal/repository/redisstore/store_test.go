package redisstore

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/paybench/internal/domain"
	"github.com/ignite/paybench/internal/service/ingest"
	"github.com/ignite/paybench/internal/service/upload"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Hour), mr
}

func TestSessionRoundTrip(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()

	sess := &ingest.Session{
		ID:          "s-1",
		WorkspaceID: "ws-1",
		FileName:    "people.csv",
		DataType:    domain.DataEmployee,
		Headers:     []string{"Name", "City"},
		Rows:        [][]string{{"Jane Doe", "Dubai"}},
		State:       ingest.StateMapping,
	}
	require.NoError(t, s.Save(ctx, sess))
	assert.Equal(t, time.Hour, mr.TTL("import:session:s-1"))

	got, err := s.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, sess.WorkspaceID, got.WorkspaceID)
	assert.Equal(t, sess.Rows, got.Rows)
	assert.Equal(t, ingest.StateMapping, got.State)
}

func TestLoadMissingSession(t *testing.T) {
	s, _ := setup(t)
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ingest.ErrSessionNotFound)
}

func TestSessionExpires(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &ingest.Session{ID: "s-1"}))

	mr.FastForward(2 * time.Hour)
	_, err := s.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ingest.ErrSessionNotFound)
}

func TestProgressAndDelete(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ingest.ErrSessionNotFound)

	require.NoError(t, s.Save(ctx, &ingest.Session{ID: "s-1"}))
	require.NoError(t, s.Publish(ctx, "s-1", upload.Progress{Batch: 1, Batches: 2, Processed: 50, Total: 70, Inserted: 50, Percent: 71.43}))

	p, err := s.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 50, p.Inserted)
	assert.Equal(t, 71.43, p.Percent)

	require.NoError(t, s.Delete(ctx, "s-1"))
	_, err = s.Load(ctx, "s-1")
	assert.ErrorIs(t, err, ingest.ErrSessionNotFound)
	_, err = s.Get(ctx, "s-1")
	assert.ErrorIs(t, err, ingest.ErrSessionNotFound)
	assert.NoError(t, s.Delete(ctx, "s-1"), "delete is idempotent")
}

func TestPublishReportsFailures(t *testing.T) {
	s, mr := setup(t)
	ctx := context.Background()

	err := s.Publish(ctx, "s-1", upload.Progress{Percent: math.NaN()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode progress s-1")
	assert.False(t, mr.Exists(progressKey("s-1")))

	mr.SetError("READONLY")
	err = s.Publish(ctx, "s-1", upload.Progress{Percent: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store progress s-1")
}
