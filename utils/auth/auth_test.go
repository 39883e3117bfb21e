package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Expiry: time.Hour, Issuer: "placement-pulse-api"})

	token, expiresAt, err := m.GenerateAccessToken(7, "asha@example.com", "student", 2)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "asha@example.com", claims.Email)
	assert.Equal(t, 2, claims.TokenVersion)
	assert.NotEmpty(t, claims.ID)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Expiry: time.Hour, Issuer: "placement-pulse-api"})

	other := NewJWTManager(JWTConfig{Secret: "other", Expiry: time.Hour, Issuer: "placement-pulse-api"})
	forged, _, err := other.GenerateAccessToken(7, "asha@example.com", "student", 0)
	require.NoError(t, err)
	_, err = m.ValidateToken(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewJWTManager(JWTConfig{Secret: "s3cret", Expiry: time.Hour, Issuer: "someone-else"})
	token, _, err := wrongIssuer.GenerateAccessToken(7, "asha@example.com", "student", 0)
	require.NoError(t, err)
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewJWTManager(JWTConfig{Secret: "s3cret", Expiry: -time.Minute, Issuer: "placement-pulse-api"})
	token, _, err = expired.GenerateAccessToken(7, "asha@example.com", "student", 0)
	require.NoError(t, err)
	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = m.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsNonAccessToken(t *testing.T) {
	m := NewJWTManager(JWTConfig{Secret: "s3cret", Expiry: time.Hour})

	claims := Claims{
		UserID:    7,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestPassword(t *testing.T) {
	Cost = bcrypt.MinCost
	defer func() { Cost = DefaultCost }()

	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, VerifyPassword(hash, "correct horse"))
	assert.ErrorIs(t, VerifyPassword(hash, "wrong horse!"), ErrPasswordMismatch)
	assert.ErrorIs(t, VerifyPassword("", "anything123"), ErrNoPassword)
}
