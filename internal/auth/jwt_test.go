package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func TestGenerateAndParse_RoundTripsPrincipal(t *testing.T) {
	for _, p := range []Principal{Admin(1), Customer(42)} {
		tok, err := GenerateToken(testSecret, p, time.Minute)
		require.NoError(t, err)

		got, err := ParseToken(testSecret, tok)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestParseToken_RejectsWrongSecretAndExpired(t *testing.T) {
	tok, err := GenerateToken(testSecret, Customer(3), time.Minute)
	require.NoError(t, err)
	_, err = ParseToken([]byte("other"), tok)
	assert.Error(t, err)

	expired, err := GenerateToken(testSecret, Customer(3), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseToken_RejectsUnknownRole(t *testing.T) {
	tok, err := GenerateToken(testSecret, Principal{Role: "robot", ID: 9}, time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(testSecret, tok)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Admin(7))
	p, ok := FromContext(ctx)
	require.True(t, ok)
	assert.True(t, p.IsAdmin())
	assert.False(t, p.IsCustomer())
	assert.Equal(t, "admin:7", p.String())
}
