// Package redisstore shares the latest snapshot between processes through Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutordash/internal/snapshot"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is where the latest snapshot lives.
const DefaultKey = "tutordash:snapshot:latest"

// kv is the part of the Redis client the store uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type Store struct {
	client kv
	key    string
	ttl    time.Duration
}

var _ snapshot.Store = (*Store)(nil)

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// New wraps client. A zero ttl keeps the key until overwritten.
func New(client kv, key string, ttl time.Duration) *Store {
	if key == "" {
		key = DefaultKey
	}
	return &Store{client: client, key: key, ttl: ttl}
}

func (s *Store) SaveSnapshot(ctx context.Context, snap *snapshot.Snapshot) error {
	payload, err := snapshot.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *Store) LoadLatest(ctx context.Context) (*snapshot.Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, snapshot.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	snap, err := snapshot.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot from %s: %w", s.key, err)
	}
	return snap, nil
}
