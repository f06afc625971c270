package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the two commands RedisStore issues.
type fakeRedis struct {
	redis.Cmdable
	values  map[string]string
	ttls    map[string]time.Duration
	failGet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	snap := Snapshot{
		ImportID:  "imp-1",
		Status:    "processing",
		Processed: 2,
		Total:     4,
		Percent:   50,
		Errors:    []ErrorItem{{Row: 3, Reason: "bad row"}},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Set(ctx, snap))

	assert.Contains(t, rdb.values, "import:progress:imp-1")
	assert.Equal(t, time.Hour, rdb.ttls["import:progress:imp-1"])

	got, err := store.Get(ctx, "imp-1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestRedisStore_DefaultTTL(t *testing.T) {
	rdb := newFakeRedis()
	store := NewRedisStore(rdb, 0)
	require.NoError(t, store.Set(context.Background(), Snapshot{ImportID: "imp-1"}))
	assert.Equal(t, DefaultTTL, rdb.ttls["import:progress:imp-1"])
}

func TestRedisStore_Errors(t *testing.T) {
	rdb := newFakeRedis()
	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rdb.values[key("corrupt")] = "{not json"
	_, err = store.Get(ctx, "corrupt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode progress corrupt")

	rdb.failGet = errors.New("connection refused")
	_, err = store.Get(ctx, "imp-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
