// Package idempotency makes retried commands no-ops after their first
// successful execution.
//
// A command carrying a key claims an idempotency record on the same database
// transaction as its work. The record and the work commit or roll back
// together, so a failed attempt leaves nothing behind and may be retried with
// the same key. Records are keyed by (tenant, key): equal keys from different
// tenants never meet.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Guard holds the settings shared by every guarded command
type Guard struct {
	cache   shared.IdempotencyCache
	config  shared.IdempotencyConfig
	metrics *telemetry.LedgerMetrics
}

// NewGuard creates a Guard. cache may be nil.
func NewGuard(cache shared.IdempotencyCache, config shared.IdempotencyConfig) *Guard {
	if config.TTL <= 0 {
		config.TTL = shared.DefaultIdempotencyConfig().TTL
	}
	return &Guard{cache: cache, config: config}
}

// SetLedgerMetrics sets the metrics collector used to count replays
func (g *Guard) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	g.metrics = m
}

type cachedResult struct {
	Operation string          `json:"operation"`
	Response  json.RawMessage `json:"response"`
}

// Execute runs fn at most once per (tenant, key) and returns its result. On a
// repeated key the stored result is decoded and returned with replayed set;
// fn is not called. An empty key disables deduplication.
//
// repo must be bound to the transaction that fn's writes use. A key first
// used for a different operation fails with IDEMPOTENCY_CONFLICT.
func Execute[T any](
	ctx context.Context,
	g *Guard,
	repo shared.IdempotencyRepository,
	tc *shared.TenantContext,
	operation, key string,
	fn func() (T, error),
) (result T, replayed bool, err error) {
	if err := shared.RequireTenant(tc); err != nil {
		return result, false, err
	}
	key = strings.TrimSpace(key)
	if key == "" {
		result, err = fn()
		return result, false, err
	}
	if len(key) > shared.MaxIdempotencyKeyLength {
		return result, false, shared.NewDomainErrorf(shared.CodeInvalidInput,
			"Idempotency key cannot exceed %d characters", shared.MaxIdempotencyKeyLength)
	}

	if cached, ok := g.fromCache(ctx, tc, key); ok {
		if cached.Operation != operation {
			return result, false, conflict(key, cached.Operation)
		}
		if err := json.Unmarshal(cached.Response, &result); err == nil {
			g.metrics.RecordReplay(ctx, tc.TenantID, operation)
			return result, true, nil
		}
	}

	now := shared.Now()
	claimed, err := repo.Claim(ctx, &shared.IdempotencyRecord{
		TenantID:  tc.TenantID,
		Key:       key,
		Operation: operation,
		CreatedAt: now,
		ExpiresAt: now.Add(g.config.TTL),
	})
	if err != nil {
		return result, false, err
	}
	if !claimed {
		return replay[T](ctx, g, repo, tc, operation, key)
	}

	result, err = fn()
	if err != nil {
		return result, false, err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return result, false, fmt.Errorf("encode idempotent result: %w", err)
	}
	if err := repo.Complete(ctx, tc.TenantID, key, payload); err != nil {
		return result, false, err
	}
	return result, false, nil
}

func replay[T any](
	ctx context.Context,
	g *Guard,
	repo shared.IdempotencyRepository,
	tc *shared.TenantContext,
	operation, key string,
) (result T, replayed bool, err error) {
	record, err := repo.Find(ctx, tc.TenantID, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The competing claim rolled back between our insert and read.
			return result, false, shared.NewDomainError(shared.CodeConcurrencyConflict,
				"A concurrent request with the same idempotency key failed, retry the request")
		}
		return result, false, err
	}
	if record.Operation != operation {
		return result, false, conflict(key, record.Operation)
	}
	if record.Response == nil {
		return result, false, shared.NewDomainError(shared.CodeConcurrencyConflict,
			"A request with the same idempotency key is still in progress")
	}
	if err := json.Unmarshal(record.Response, &result); err != nil {
		return result, false, fmt.Errorf("decode idempotent result: %w", err)
	}

	g.toCache(ctx, tc, key, operation, record.Response)
	g.metrics.RecordReplay(ctx, tc.TenantID, operation)
	logger.L(ctx).Info("idempotent replay",
		zap.String("operation", operation),
		zap.String("idempotency_key", key),
	)
	return result, true, nil
}

func conflict(key, usedBy string) error {
	return shared.NewDomainErrorf(shared.CodeIdempotencyConflict,
		"Idempotency key %q was already used for %s", key, usedBy)
}

func cacheKey(tc *shared.TenantContext, key string) string {
	return tc.TenantID.String() + ":" + key
}

func (g *Guard) fromCache(ctx context.Context, tc *shared.TenantContext, key string) (cachedResult, bool) {
	var cached cachedResult
	if g.cache == nil || !g.config.Enabled {
		return cached, false
	}
	payload, ok, err := g.cache.Get(ctx, cacheKey(tc, key))
	if err != nil {
		logger.L(ctx).Warn("idempotency cache read failed", zap.Error(err))
		return cached, false
	}
	if !ok || json.Unmarshal(payload, &cached) != nil {
		return cached, false
	}
	return cached, true
}

// toCache stores only results read back from a committed record; results
// produced in the running transaction may still roll back.
func (g *Guard) toCache(ctx context.Context, tc *shared.TenantContext, key, operation string, response []byte) {
	if g.cache == nil || !g.config.Enabled {
		return
	}
	payload, err := json.Marshal(cachedResult{Operation: operation, Response: response})
	if err != nil {
		return
	}
	if err := g.cache.Put(ctx, cacheKey(tc, key), payload, g.config.TTL); err != nil {
		logger.L(ctx).Warn("idempotency cache write failed", zap.Error(err))
	}
}
