package service

import (
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-jwt-secret-key-for-unit-tests"

func TestJWTTokenService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "wallet-ledger")
	merchant := domain.Principal{ID: uuid.New(), Role: domain.RoleMerchant}

	tokenStr, expiresAt, err := svc.Generate(merchant)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, claims.Subject)
	assert.Equal(t, domain.RoleMerchant, claims.Role)
}

func TestJWTTokenService_AdminRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")

	tokenStr, _, err := svc.Generate(domain.Principal{ID: uuid.New(), Role: domain.RoleAdmin})
	require.NoError(t, err)

	claims, err := svc.Validate(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestJWTTokenService_UnknownRole(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")

	_, _, err := svc.Generate(domain.Principal{ID: uuid.New(), Role: "superuser"})
	assert.Error(t, err)
}

func TestJWTTokenService_ExpiredToken(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, -1*time.Hour, "wallet-ledger")

	tokenStr, _, err := svc.Generate(domain.Principal{ID: uuid.New(), Role: domain.RoleMerchant})
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTTokenService_WrongIssuer(t *testing.T) {
	issuing := NewJWTTokenService(testJWTSecret, time.Hour, "someone-else")
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")

	tokenStr, _, err := issuing.Generate(domain.Principal{ID: uuid.New(), Role: domain.RoleMerchant})
	require.NoError(t, err)

	_, err = svc.Validate(tokenStr)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidSignature(t *testing.T) {
	svc1 := NewJWTTokenService("secret-1", 24*time.Hour, "issuer")
	svc2 := NewJWTTokenService("secret-2", 24*time.Hour, "issuer")

	tokenStr, _, err := svc1.Generate(domain.Principal{ID: uuid.New(), Role: domain.RoleMerchant})
	require.NoError(t, err)

	_, err = svc2.Validate(tokenStr)
	assert.Error(t, err, "token signed with different secret should fail")
}

func TestJWTTokenService_RejectsNoneAlgorithm(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, time.Hour, "wallet-ledger")
	claims := jwt.MapClaims{"sub": uuid.New().String(), "role": "admin", "iss": "wallet-ledger",
		"exp": time.Now().Add(time.Hour).Unix()}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(unsigned)
	assert.Error(t, err)
}

func TestJWTTokenService_InvalidTokenString(t *testing.T) {
	svc := NewJWTTokenService(testJWTSecret, 24*time.Hour, "issuer")

	_, err := svc.Validate("not.a.valid.jwt")
	assert.Error(t, err)

	_, err = svc.Validate("")
	assert.Error(t, err)
}
