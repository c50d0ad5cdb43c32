package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/w3bsuki/driplo-final/pkg/config"
	"github.com/w3bsuki/driplo-final/pkg/enums"
)

func newTestTokens(t *testing.T, issuer string, leeway time.Duration) *Tokens {
	t.Helper()
	tokens, err := NewTokens(config.JWTConfig{Secret: "secret", Issuer: issuer, ExpirationMinutes: 30, Leeway: leeway})
	require.NoError(t, err)
	return tokens
}

func TestMintThenVerify(t *testing.T) {
	tokens := newTestTokens(t, "driplo", 0)
	now := time.Now().UTC()
	userID := uuid.New()

	raw, err := tokens.Mint(now, AccessTokenPayload{UserID: userID, Username: " mila ", Role: enums.UserRoleAdmin, JTI: "jti-1"})
	require.NoError(t, err)

	claims, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "mila", claims.Username)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, "jti-1", claims.ID)
	assert.Equal(t, "driplo", claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyRejections(t *testing.T) {
	tokens := newTestTokens(t, "driplo", 0)
	valid, err := tokens.Mint(time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)

	_, err = tokens.Verify(valid + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = newTestTokens(t, "someone-else", 0).Verify(valid)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired, err := tokens.Mint(time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)
	_, err = tokens.Verify(expired)
	assert.ErrorIs(t, err, ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{
		UserID:           uuid.New(),
		Role:             enums.UserRoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "driplo", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = tokens.Verify(none)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRequiresExpiryAndUser(t *testing.T) {
	tokens := newTestTokens(t, "driplo", 0)
	sign := func(c AccessTokenClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("secret"))
		require.NoError(t, err)
		return raw
	}

	_, err := tokens.Verify(sign(AccessTokenClaims{UserID: uuid.New(), Role: enums.UserRoleUser, RegisteredClaims: jwt.RegisteredClaims{Issuer: "driplo"}}))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = tokens.Verify(sign(AccessTokenClaims{Role: enums.UserRoleUser, RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "driplo",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLeewayAcceptsRecentlyExpiredTokens(t *testing.T) {
	tokens := newTestTokens(t, "driplo", time.Minute)
	raw, err := tokens.Mint(time.Now().Add(-30*time.Minute-10*time.Second), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleUser})
	require.NoError(t, err)
	_, err = tokens.Verify(raw)
	assert.NoError(t, err)
}

func TestNewTokensAndMintValidate(t *testing.T) {
	_, err := NewTokens(config.JWTConfig{Issuer: "driplo", ExpirationMinutes: 5})
	assert.Error(t, err)
	_, err = NewTokens(config.JWTConfig{Secret: "s", ExpirationMinutes: 5})
	assert.Error(t, err)
	_, err = NewTokens(config.JWTConfig{Secret: "s", Issuer: "driplo"})
	assert.Error(t, err)

	tokens := newTestTokens(t, "driplo", 0)
	_, err = tokens.Mint(time.Now(), AccessTokenPayload{UserID: uuid.New()})
	assert.Error(t, err)
	_, err = tokens.Mint(time.Now(), AccessTokenPayload{Role: enums.UserRoleUser})
	assert.Error(t, err)
}
