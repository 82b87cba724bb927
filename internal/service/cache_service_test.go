package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func (failingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection refused")
}

func (failingCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	return 0, errors.New("connection refused")
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	require.True(t, svc.Enabled())

	svc.Set(context.Background(), timetableKey("tt-1"), map[string]string{"id": "tt-1"}, 0)
	svc.Set(context.Background(), activeTimetableKey, map[string]string{"id": "tt-1"}, 0)
	repo.data["other:key"] = []byte(`1`)

	var got map[string]string
	assert.True(t, svc.Get(context.Background(), timetableKey("tt-1"), &got))
	assert.Equal(t, "tt-1", got["id"])
	assert.False(t, svc.Get(context.Background(), timetableKey("tt-2"), &got))

	svc.InvalidateTimetables(context.Background())
	assert.Len(t, repo.data, 1)
	assert.Contains(t, repo.data, "other:key")
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, false)
	assert.False(t, svc.Enabled())

	svc.Set(context.Background(), "timetable:x", 1, 0)
	assert.Empty(t, repo.data)
	var dest int
	assert.False(t, svc.Get(context.Background(), "timetable:x", &dest))
	assert.Zero(t, repo.gets)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.InvalidateTimetables(context.Background())
}

func TestCacheServiceSwallowsBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCache{}, nil, time.Minute, nil, true)
	var dest int
	assert.False(t, svc.Get(context.Background(), "timetable:x", &dest))
	assert.NotPanics(t, func() {
		svc.Set(context.Background(), "timetable:x", 1, 0)
		svc.InvalidateTimetables(context.Background())
	})
}
