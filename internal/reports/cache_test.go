package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewstay/crewstay/internal/billing"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersionAndBump(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b:v1", key)

	require.NoError(t, cache.Bump(ctx))
	key, err = cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "a:b:v2", key)
}

func TestCacheBumpSeenByOtherInstances(t *testing.T) {
	first, mr := newTestCache(t)
	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = other.Close() })
	second := NewCache(other, time.Minute)
	ctx := context.Background()

	key, err := second.BuildKey(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a:v1", key)

	require.NoError(t, first.Bump(ctx))
	key, err = second.BuildKey(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a:v2", key)
}

func TestCacheFetchJSON(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return map[string]int{"rows": 3}, nil
	}

	var out map[string]int
	hit, err := cache.FetchJSON(ctx, "k", &out, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, out["rows"])
	assert.True(t, mr.Exists("k"))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	out = nil
	hit, err = cache.FetchJSON(ctx, "k", &out, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, out["rows"])
	assert.Equal(t, 1, calls)
}

func TestCacheLoaderErrorNotStored(t *testing.T) {
	cache, mr := newTestCache(t)
	boom := errors.New("boom")
	var out map[string]int
	_, err := cache.FetchJSON(context.Background(), "k", &out, func(context.Context) (any, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestNilCachePassesThrough(t *testing.T) {
	var cache *Cache
	key, err := cache.BuildKey(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, "x:y", key)
	require.NoError(t, cache.Bump(context.Background()))

	var out int
	hit, err := cache.FetchJSON(context.Background(), key, &out, func(context.Context) (any, error) { return 7, nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, out)
}

func TestAllocationKeyUsesUTC(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*3600)
	filter := BuildFilter{
		Kind:    billing.KindHotel,
		OwnerID: "h1",
		Start:   time.Date(2025, 1, 1, 3, 0, 0, 0, moscow),
		End:     time.Date(2025, 1, 2, 3, 0, 0, 0, moscow),
	}
	assert.Equal(t, []string{"reports", "allocation", "hotel", "h1", "2025-01-01T00:00:00Z", "2025-01-02T00:00:00Z"}, allocationKey(filter))
}
