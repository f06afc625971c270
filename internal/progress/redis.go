package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/studentimport/internal/config"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces progress keys in Redis.
const KeyPrefix = "import:progress:"

// RedisStore keeps snapshots as JSON strings with a Redis expiry, so
// every replica of the service sees the same progress.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

// NewRedisClient connects to Redis and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func key(importID string) string {
	return KeyPrefix + importID
}

// Set writes s with SET ... EX ttl.
func (r *RedisStore) Set(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := r.rdb.Set(ctx, key(s.ImportID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress %s: %w", s.ImportID, err)
	}
	return nil
}

// Get reads the snapshot for importID or returns ErrNotFound.
func (r *RedisStore) Get(ctx context.Context, importID string) (Snapshot, error) {
	data, err := r.rdb.Get(ctx, key(importID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get progress %s: %w", importID, err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode progress %s: %w", importID, err)
	}
	return s, nil
}
