package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/auth"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Authentication headers
const (
	AuthHeaderKey   = "Authorization"
	BearerPrefix    = "Bearer "
	TenantHeaderKey = "X-Tenant-ID"
	UserHeaderKey   = "X-User-ID"
)

// TenantContextKey is where the resolved shared.TenantContext lives in gin.Context
const TenantContextKey = "tenant_context"

type tenantCtxKey struct{}

// TenantAuthConfig holds configuration for TenantAuth
type TenantAuthConfig struct {
	Verifier *auth.Verifier
	// AllowHeaderAuth trusts X-Tenant-ID / X-User-ID when no bearer token is
	// sent. Only for deployments behind an authenticating gateway.
	AllowHeaderAuth bool
	SkipPaths       []string
	Logger          *zap.Logger
}

// TenantAuth resolves the caller into a shared.TenantContext. A request
// without credentials is rejected with MISSING_TENANT_CONTEXT; a bad token
// with UNAUTHORIZED or TOKEN_EXPIRED.
func TenantAuth(cfg TenantAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tc, method, err := resolveTenant(c, cfg)
		if err != nil {
			log.Warn("Tenant authentication failed",
				zap.String("path", path),
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			respondAuthError(c, err)
			return
		}

		c.Set(TenantContextKey, tc)
		ctx := WithTenantContext(c.Request.Context(), tc)
		ctx = logger.WithTenantID(ctx, tc.TenantID.String())
		if tc.ActorID != uuid.Nil {
			ctx = logger.WithUserID(ctx, tc.ActorID.String())
		}
		c.Request = c.Request.WithContext(ctx)

		log.Debug("Tenant identified",
			zap.String("tenant_id", tc.TenantID.String()),
			zap.String("method", method),
		)
		c.Next()
	}
}

func resolveTenant(c *gin.Context, cfg TenantAuthConfig) (*shared.TenantContext, string, error) {
	if header := c.GetHeader(AuthHeaderKey); header != "" {
		if !strings.HasPrefix(header, BearerPrefix) || cfg.Verifier == nil {
			return nil, "", auth.ErrInvalidToken
		}
		claims, err := cfg.Verifier.Verify(strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix)))
		if err != nil {
			return nil, "", err
		}
		tenantID, _ := claims.TenantUUID()
		userID, _ := claims.UserUUID()
		tc, err := shared.NewTenantContext(tenantID, userID)
		return tc, "jwt", err
	}

	if !cfg.AllowHeaderAuth {
		return nil, "", shared.ErrMissingTenantContext
	}
	raw := strings.TrimSpace(c.GetHeader(TenantHeaderKey))
	if raw == "" {
		return nil, "", shared.ErrMissingTenantContext
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return nil, "", auth.ErrInvalidClaims
	}
	var userID uuid.UUID
	if rawUser := strings.TrimSpace(c.GetHeader(UserHeaderKey)); rawUser != "" {
		if userID, err = uuid.Parse(rawUser); err != nil {
			return nil, "", auth.ErrInvalidClaims
		}
	}
	tc, err := shared.NewTenantContext(tenantID, userID)
	return tc, "header", err
}

func respondAuthError(c *gin.Context, err error) {
	code, message := dto.ErrCodeUnauthorized, "Invalid credentials"
	switch {
	case errors.Is(err, shared.ErrMissingTenantContext):
		code, message = shared.CodeMissingTenantContext, "Tenant identification required"
	case errors.Is(err, auth.ErrExpiredToken):
		code, message = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenNotYetValid):
		message = "Token is not yet valid"
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message, GetRequestID(c)))
}

// WithTenantContext stores tc on ctx
func WithTenantContext(ctx context.Context, tc *shared.TenantContext) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, tc)
}

// TenantContextFrom returns the tenant stored by WithTenantContext, or nil
func TenantContextFrom(ctx context.Context) *shared.TenantContext {
	tc, _ := ctx.Value(tenantCtxKey{}).(*shared.TenantContext)
	return tc
}

// GetTenantContext returns the tenant resolved by TenantAuth, or nil on
// skipped paths.
func GetTenantContext(c *gin.Context) *shared.TenantContext {
	if v, ok := c.Get(TenantContextKey); ok {
		if tc, ok := v.(*shared.TenantContext); ok {
			return tc
		}
	}
	return nil
}

// GetTenantID returns the resolved tenant id as a string, or ""
func GetTenantID(c *gin.Context) string {
	if tc := GetTenantContext(c); tc != nil {
		return tc.TenantID.String()
	}
	return ""
}
