package embcache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// RedisStore is a rueidis-backed store with a fixed TTL per entry.
type RedisStore struct {
	client rueidis.Client
	ttl    time.Duration
}

// RedisConfig holds connection parameters for the embedding cache.
type RedisConfig struct {
	Addrs    []string
	Password string
	TTL      time.Duration
}

// NewRedisStore connects to Redis and returns a TTL-bounded store.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Password:     cfg.Password,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// Get retrieves a value by key. Returns errKeyNotFound on a miss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(key).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, errKeyNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Set stores a value with the configured TTL.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *RedisStore) Close() {
	s.client.Close()
}
