package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-at-least-32-chars!!"

func newTestVerifier() *Verifier {
	return NewVerifier(config.AuthConfig{JWTSecret: testSecret, Issuer: "stockledger"})
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := newTestVerifier()
	tenantID, userID := uuid.New(), uuid.New()

	token, err := v.Sign(tenantID, userID, time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	got, err := claims.TenantUUID()
	require.NoError(t, err)
	assert.Equal(t, tenantID, got)
	got, err = claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifier_Rejects(t *testing.T) {
	v := newTestVerifier()
	tenantID, userID := uuid.New(), uuid.New()

	expired, err := v.Sign(tenantID, userID, -time.Hour)
	require.NoError(t, err)

	otherIssuer, err := NewVerifier(config.AuthConfig{JWTSecret: testSecret, Issuer: "elsewhere"}).Sign(tenantID, userID, time.Minute)
	require.NoError(t, err)

	wrongSecret, err := NewVerifier(config.AuthConfig{JWTSecret: "another-secret-key-of-32-characters", Issuer: "stockledger"}).Sign(tenantID, userID, time.Minute)
	require.NoError(t, err)

	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "stockledger", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		UserID:           userID.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	badTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "stockledger", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
		TenantID:         "acme",
		UserID:           userID.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{TenantID: tenantID.String(), UserID: userID.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrExpiredToken},
		{"other issuer", otherIssuer, ErrInvalidToken},
		{"wrong secret", wrongSecret, ErrInvalidToken},
		{"missing tenant", noTenant, ErrMissingTenantID},
		{"tenant not a uuid", badTenant, ErrInvalidClaims},
		{"alg none", none, ErrInvalidToken},
		{"garbage", "not.a.token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestVerifier_MissingSecret(t *testing.T) {
	v := NewVerifier(config.AuthConfig{})
	_, err := v.Verify("x")
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = v.Sign(uuid.New(), uuid.New(), time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
