package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/enrollment-finance-api/pkg/errors"
)

type memoryCacheRepo struct {
	values  map[string][]byte
	failGet bool
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.failGet {
		return errors.New("redis down")
	}
	raw, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = raw
	return nil
}

func (m *memoryCacheRepo) Delete(ctx context.Context, key string) error {
	delete(m.values, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deleted = append(m.deleted, pattern)
	return nil
}

func TestCacheServiceRoundTrip(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)

	var out []string
	assert.False(t, cache.Get(context.Background(), RosterCacheKey("c1"), &out))

	cache.Set(context.Background(), RosterCacheKey("c1"), []string{"ana"}, 0)
	require.True(t, cache.Get(context.Background(), RosterCacheKey("c1"), &out))
	assert.Equal(t, []string{"ana"}, out)

	cache.Invalidate(context.Background(), RosterCacheKey("c1"))
	assert.False(t, cache.Get(context.Background(), RosterCacheKey("c1"), &out))
}

func TestCacheServiceSwallowsFailures(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.failGet = true
	cache := NewCacheService(repo, nil, time.Minute, nil, true)

	var out []string
	assert.False(t, cache.Get(context.Background(), "k", &out))
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, nil, false)

	cache.Set(context.Background(), "k", "v", 0)
	assert.Empty(t, repo.values)
	var nilCache *CacheService
	assert.False(t, nilCache.Enabled())
}
