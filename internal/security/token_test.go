package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := "test-secret"

	token, err := GenerateAccessToken(secret, "user-1", "sess-1", "device-1", "seller", time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseAccessToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "device-1", claims.DeviceID)
	require.Equal(t, "seller", claims.Role)
	require.Equal(t, "user-1", claims.Subject)
}

func TestParseAccessToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken("secret-a", "user-1", "sess-1", "device-1", "buyer", time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret-b")
	require.Error(t, err)
}

func TestParseAccessToken_Expired(t *testing.T) {
	token, err := GenerateAccessToken("secret", "user-1", "sess-1", "device-1", "buyer", -time.Minute)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret")
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseAccessToken_RejectsUnsignedAlg(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{UserID: "user-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseAccessToken(token, "secret")
	require.Error(t, err)
}

func TestRefreshTokenHashing(t *testing.T) {
	token, hash, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Len(t, hash, 32)
	require.Equal(t, hash, HashRefreshToken(token))

	other, _, err := GenerateRefreshToken(64)
	require.NoError(t, err)
	require.NotEqual(t, token, other)
}
