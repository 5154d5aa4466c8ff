package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStoreConfig holds configuration for the Redis store.
type RedisStoreConfig struct {
	// Addr is the host:port of the Redis server
	Addr string `env:"ADDR" default:"localhost:6379"`
	// Password is the optional AUTH password
	Password string `env:"PASSWORD" default:""`
	// DB selects the logical database
	DB int `env:"DB" default:"0"`
	// KeyPrefix is prepended to every key
	KeyPrefix string `env:"KEY_PREFIX" default:""`
}

// RedisStore implements Store on plain Redis strings.
type RedisStore struct {
	client redis.Cmdable
	closer func() error
	prefix string
}

var _ Store = (*RedisStore)(nil)

// RedisStoreFactory creates a factory function that returns a new RedisStore.
func RedisStoreFactory(cfg RedisStoreConfig) StoreFactory {
	return func(ctx context.Context) (Store, error) {
		//nolint:exhaustruct
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()

			return nil, fmt.Errorf("ping redis: %w", err)
		}

		store := NewRedisStore(client, cfg.KeyPrefix)
		store.closer = client.Close

		return store, nil
	}
}

// NewRedisStore wraps an existing client. The caller keeps ownership of the client.
func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		closer: func() error { return nil },
		prefix: prefix,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

func (s *RedisStore) Close() error {
	if err := s.closer(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}

	return nil
}
