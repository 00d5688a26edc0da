package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superchat/server/internal/domain"
)

func signToken(t *testing.T, secret string, claims AccessClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateAccessToken(t *testing.T) {
	const secret = "test-secret"

	signed := signToken(t, secret, AccessClaims{
		UserID:   42,
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := ValidateAccessToken(signed, secret)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestValidateAccessTokenWrongSecret(t *testing.T) {
	signed := signToken(t, "right-secret", AccessClaims{UserID: 42})

	_, err := ValidateAccessToken(signed, "wrong-secret")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestValidateAccessTokenExpired(t *testing.T) {
	const secret = "test-secret"
	signed := signToken(t, secret, AccessClaims{
		UserID: 42,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := ValidateAccessToken(signed, secret)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestValidateAccessTokenGarbage(t *testing.T) {
	_, err := ValidateAccessToken("not.a.token", "secret")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ExtractToken("")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))

	_, err = ExtractToken("Token abc")
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}
