package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
)

func TestTenantRateLimiter_Allow(t *testing.T) {
	rl := NewTenantRateLimiter(1, 2)
	defer rl.Stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, _, _ := rl.Allow("a")
	assert.True(t, ok)
	ok, remaining, _ := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, retry := rl.Allow("a")
	assert.False(t, ok)
	assert.Greater(t, retry, time.Duration(0))

	// other keys have their own bucket
	ok, _, _ = rl.Allow("b")
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _, _ = rl.Allow("a")
	assert.True(t, ok)
}

func TestTenantRateLimiter_EvictIdle(t *testing.T) {
	rl := NewTenantRateLimiter(10, 0)
	defer rl.Stop()
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(rl.idleTTL + time.Second)
	rl.Allow("busy")
	rl.evictIdle()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.NotContains(t, rl.buckets, "idle")
	assert.Contains(t, rl.buckets, "busy")
	assert.Equal(t, 10, rl.burst)
}

func TestRateLimit_PerTenant(t *testing.T) {
	rl := NewTenantRateLimiter(0.001, 1)
	defer rl.Stop()

	router := gin.New()
	tenantA, tenantB := uuid.New(), uuid.New()
	router.Use(RequestID(), func(c *gin.Context) {
		id := tenantA
		if c.Query("t") == "b" {
			id = tenantB
		}
		c.Set(TenantContextKey, shared.MustTenantContext(id, uuid.Nil))
		c.Next()
	}, RateLimit(rl))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve := func(query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test"+query, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, serve("").Code)

	w := serve("")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeRateLimited)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, serve("?t=b").Code)
}

func TestRateLimit_NilLimiter(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(nil))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 5 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
