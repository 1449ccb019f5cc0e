package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stockledger/backend/internal/domain/shared"
)

const defaultKeyPrefix = "ledger:idempotency:"

// RedisIdempotencyCache implements shared.IdempotencyCache using Redis.
// Replicas of the service share replayed results through it.
type RedisIdempotencyCache struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisIdempotencyCache connects to Redis and creates a cache
func NewRedisIdempotencyCache(cfg RedisConfig) (*RedisIdempotencyCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisIdempotencyCacheWithClient creates a cache with an existing Redis client
func NewRedisIdempotencyCacheWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisIdempotencyCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Get returns the payload stored under key
func (c *RedisIdempotencyCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read idempotency cache: %w", err)
	}
	return payload, true, nil
}

// Put stores payload under key with a TTL
func (c *RedisIdempotencyCache) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency cache: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisIdempotencyCache) Close() error {
	return c.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisIdempotencyCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisIdempotencyCache implements IdempotencyCache
var _ shared.IdempotencyCache = (*RedisIdempotencyCache)(nil)
