package cache

import (
	"fmt"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency cache backends accepted by CreateCache
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
	BackendNone   = "none"
)

// IdempotencyCacheFactory creates idempotency caches based on configuration
type IdempotencyCacheFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyCacheFactoryOption is a functional option for configuring the factory
type IdempotencyCacheFactoryOption func(*IdempotencyCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory cache when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) IdempotencyCacheFactoryOption {
	return func(f *IdempotencyCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyCacheFactory creates a new factory
func NewIdempotencyCacheFactory(cfg config.RedisConfig, opts ...IdempotencyCacheFactoryOption) *IdempotencyCacheFactory {
	f := &IdempotencyCacheFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisCache creates a Redis-based idempotency cache
func (f *IdempotencyCacheFactory) CreateRedisCache() (shared.IdempotencyCache, error) {
	c, err := NewRedisIdempotencyCache(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency cache: %w", err)
	}
	return c, nil
}

// CreateInMemoryCache creates an in-memory idempotency cache.
// Replicas do not share it; each falls back to the database on a miss.
func (f *IdempotencyCacheFactory) CreateInMemoryCache() shared.IdempotencyCache {
	return NewInMemoryIdempotencyCache()
}

// CreateCache creates the cache for backend. "none" returns a nil cache,
// which the idempotency guard treats as disabled.
func (f *IdempotencyCacheFactory) CreateCache(backend string) (shared.IdempotencyCache, error) {
	switch backend {
	case BackendNone:
		return nil, nil
	case BackendMemory, "":
		f.logger.Info("using in-memory idempotency cache")
		return f.CreateInMemoryCache(), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown idempotency cache backend %q", backend)
	}

	c, err := f.CreateRedisCache()
	if err == nil {
		f.logger.Info("using Redis idempotency cache")
		return c, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency cache but unavailable: %w", err)
	}

	// The database record stays authoritative, so a local cache only loses sharing.
	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency cache", zap.Error(err))
	return f.CreateInMemoryCache(), nil
}
