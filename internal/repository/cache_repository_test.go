package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), srv
}

func TestCacheRepositoryRoundTrip(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	var out map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "metrics:u1", &out), appErrors.ErrCacheMiss)

	require.NoError(t, repo.Set(ctx, "metrics:u1", map[string]int{"totalStudents": 3}, time.Minute))
	require.NoError(t, repo.Get(ctx, "metrics:u1", &out))
	assert.Equal(t, 3, out["totalStudents"])

	srv.FastForward(2 * time.Minute)
	assert.ErrorIs(t, repo.Get(ctx, "metrics:u1", &out), appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "attendance:u1:metrics", 1, 0))
	require.NoError(t, repo.Set(ctx, "attendance:u1:history", 1, 0))
	require.NoError(t, repo.Set(ctx, "attendance:u2:metrics", 1, 0))

	require.NoError(t, repo.DeleteByPattern(ctx, "attendance:u1:*"))
	assert.False(t, srv.Exists("attendance:u1:metrics"))
	assert.False(t, srv.Exists("attendance:u1:history"))
	assert.True(t, srv.Exists("attendance:u2:metrics"))

	require.NoError(t, repo.Delete(ctx, "attendance:u2:metrics", "missing"))
	assert.False(t, srv.Exists("attendance:u2:metrics"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var out int
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", 1, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
