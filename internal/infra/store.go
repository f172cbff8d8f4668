package infra

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ByteStore is a pluggable cache backend for serialized gateway responses.
// Implementations must be safe for concurrent use. A lookup miss and a
// backend error look identical to callers; the cache is best-effort.
type ByteStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// MemoryStore adapts Cache to ByteStore for single-process deployments.
type MemoryStore struct {
	cache *Cache
}

// NewMemoryStore creates an in-process store with the given default TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: NewCache(ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	s.cache.SetWithTTL(key, value, ttl)
}

// RedisStore is a Redis-backed ByteStore, for deployments where several
// gateway instances share one short-lived response cache.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis get %s: %v", key, err)
		}
		return nil, false
	}
	return b, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("redis set %s: %v", key, err)
	}
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
