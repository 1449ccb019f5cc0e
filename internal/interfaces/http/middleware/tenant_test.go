package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tenantTestSecret = "middleware-test-secret-32-chars!!"

func newTenantRouter(allowHeader bool) (*gin.Engine, *auth.Verifier) {
	verifier := auth.NewVerifier(config.AuthConfig{JWTSecret: tenantTestSecret, Issuer: "stockledger"})
	router := gin.New()
	router.Use(RequestID(), TenantAuth(TenantAuthConfig{
		Verifier:        verifier,
		AllowHeaderAuth: allowHeader,
		SkipPaths:       []string{"/health"},
	}))
	whoami := func(c *gin.Context) {
		tc := GetTenantContext(c)
		if tc == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		fromReq := TenantContextFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"tenant":     tc.TenantID,
			"actor":      tc.ActorID,
			"same":       fromReq == tc,
			"log_tenant": logger.GetTenantID(c.Request.Context()),
		})
	}
	router.GET("/api/v1/whoami", whoami)
	router.GET("/health", whoami)
	return router, verifier
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestTenantAuth_Bearer(t *testing.T) {
	router, verifier := newTenantRouter(false)
	tenantID, userID := uuid.New(), uuid.New()
	token, err := verifier.Sign(tenantID, userID, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tenantID.String(), body["tenant"])
	assert.Equal(t, userID.String(), body["actor"])
	assert.Equal(t, true, body["same"])
	assert.Equal(t, tenantID.String(), body["log_tenant"])
}

func TestTenantAuth_Rejections(t *testing.T) {
	router, verifier := newTenantRouter(false)
	expired, err := verifier.Sign(uuid.New(), uuid.New(), -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		header   map[string]string
		wantCode string
	}{
		{"no credentials", nil, shared.CodeMissingTenantContext},
		{"header auth disabled", map[string]string{TenantHeaderKey: uuid.NewString()}, shared.CodeMissingTenantContext},
		{"not bearer", map[string]string{AuthHeaderKey: "Basic Zm9vOmJhcg=="}, dto.ErrCodeUnauthorized},
		{"garbage token", map[string]string{AuthHeaderKey: BearerPrefix + "nope"}, dto.ErrCodeUnauthorized},
		{"expired token", map[string]string{AuthHeaderKey: BearerPrefix + expired}, dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, w))
		})
	}
}

func TestTenantAuth_HeaderFallback(t *testing.T) {
	router, _ := newTenantRouter(true)
	tenantID := uuid.New()

	t.Run("tenant header accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
	})

	t.Run("malformed tenant header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set(TenantHeaderKey, "acme")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
	})

	t.Run("nil tenant header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
		req.Header.Set(TenantHeaderKey, uuid.Nil.String())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, shared.CodeMissingTenantContext, errorCode(t, w))
	})
}

func TestTenantAuth_SkipPaths(t *testing.T) {
	router, _ := newTenantRouter(false)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}
