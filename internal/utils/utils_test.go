package utils

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse"))
	assert.False(t, VerifyPassword(hash, "wrong horse"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestNewAccessToken_Claims(t *testing.T) {
	at, err := NewAccessToken("s3cret", 42, "Admin", 15)
	require.NoError(t, err)

	tok, err := jwt.Parse(at.Token, func(*jwt.Token) (interface{}, error) { return []byte("s3cret"), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "Admin", claims["role"])
}

func TestNewTokenPair_RefreshIsRandom(t *testing.T) {
	a, err := NewTokenPair("k", 1, "User", 15, 30)
	require.NoError(t, err)
	b, err := NewTokenPair("k", 1, "User", 15, 30)
	require.NoError(t, err)

	assert.Len(t, a.Refresh.Raw, 96)
	assert.NotEqual(t, a.Refresh.Raw, b.Refresh.Raw)
	assert.Len(t, HashRefreshRaw(a.Refresh.Raw), 64)
	assert.True(t, a.Refresh.Exp.After(a.Access.Exp))
}
