package service_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmdocs/internal/config"
	"firmdocs/internal/domain"
	"firmdocs/internal/service"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret-key-for-testing", Issuer: "firmdocs-test"}
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := service.NewTokenVerifier(testJWTConfig())
	tenant, user := uuid.New(), uuid.New()

	token, err := v.IssueToken(tenant, user, "manager", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenant, claims.TenantID)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, "manager", claims.Role)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := service.NewTokenVerifier(testJWTConfig())
	tenant, user := uuid.New(), uuid.New()

	expired, err := v.IssueToken(tenant, user, "staff", -time.Minute)
	require.NoError(t, err)

	otherKey := service.NewTokenVerifier(config.JWTConfig{Secret: "different", Issuer: "firmdocs-test"})
	forged, err := otherKey.IssueToken(tenant, user, "admin", time.Hour)
	require.NoError(t, err)

	otherIssuer := service.NewTokenVerifier(config.JWTConfig{Secret: "test-secret-key-for-testing", Issuer: "elsewhere"})
	foreign, err := otherIssuer.IssueToken(tenant, user, "admin", time.Hour)
	require.NoError(t, err)

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &service.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "firmdocs-test",
			Audience:  jwt.ClaimStrings{"refresh"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: tenant, UserID: user,
	}).SignedString([]byte("test-secret-key-for-testing"))
	require.NoError(t, err)

	noTenant, err := v.IssueToken(uuid.Nil, user, "staff", time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong key":    forged,
		"wrong issuer": foreign,
		"refresh":      refresh,
		"no tenant":    noTenant,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}
