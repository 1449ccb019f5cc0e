package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IdempotencyCache is a read-through accelerator for stored idempotent
// results. The database record is authoritative; a cache miss or error only
// costs a database lookup.
type IdempotencyCache interface {
	// Get returns the cached payload for key, reporting whether it was present
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores payload under key for ttl
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Close closes the cache and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL bounds how long a cached result is served from the cache
	// Default: 24 hours
	TTL time.Duration

	// Enabled determines whether the cache is consulted at all
	// Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

// MaxIdempotencyKeyLength bounds caller-supplied keys
const MaxIdempotencyKeyLength = 255

// IdempotencyRecord stores the outcome of a keyed command. The tenant id is
// part of the identity, so equal keys from different tenants never collide.
type IdempotencyRecord struct {
	TenantID  uuid.UUID
	Key       string
	Operation string
	Response  []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpired reports whether the record may be discarded
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// IdempotencyRepository persists idempotency records. It must be used on the
// same transaction as the guarded work so the record and its side effects
// commit together.
type IdempotencyRepository interface {
	// Find returns the record for (tenantID, key) or ErrNotFound
	Find(ctx context.Context, tenantID uuid.UUID, key string) (*IdempotencyRecord, error)

	// Claim inserts a pending record. It reports false when a record for the
	// key already exists; on databases with row-level locking the call waits
	// for a concurrent claimer to commit or roll back first.
	Claim(ctx context.Context, record *IdempotencyRecord) (bool, error)

	// Complete stores the response of a claimed record
	Complete(ctx context.Context, tenantID uuid.UUID, key string, response []byte) error

	// DeleteExpired removes records that expired before now
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
