package session

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Parallel()

	c, err := NewCodec("super-secret")
	require.NoError(t, err)

	expires := time.Now().Add(TTL).Truncate(time.Second)
	tok, err := c.Encrypt(Payload{UserID: "user-123", ExpiresAt: expires})
	require.NoError(t, err)

	got, ok := c.Decrypt(tok)
	require.True(t, ok)
	require.Equal(t, "user-123", got.UserID)
	require.True(t, got.ExpiresAt.Equal(expires), "expiresAt %v != %v", got.ExpiresAt, expires)
}

func TestEncrypt_ExpiryIndependentOfPayload(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCodec("k", WithClock(fixedClock(now)))
	require.NoError(t, err)

	// A payload expiry in the past must not shorten the signed exp claim.
	tok, err := c.Encrypt(Payload{UserID: "u1", ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	claims := &Claims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	require.Equal(t, now.Add(TTL).Unix(), claims.RegisteredClaims.ExpiresAt.Unix())
	require.Equal(t, now.Unix(), claims.IssuedAt.Unix())

	_, ok := c.Decrypt(tok)
	require.True(t, ok)
}

func TestDecrypt_RejectsInvalidTokens(t *testing.T) {
	t.Parallel()

	c, err := NewCodec("right-secret")
	require.NoError(t, err)
	other, err := NewCodec("wrong-secret")
	require.NoError(t, err)

	foreign, err := other.Encrypt(Payload{UserID: "u2", ExpiresAt: time.Now()})
	require.NoError(t, err)

	noUser, err := c.Encrypt(Payload{ExpiresAt: time.Now()})
	require.NoError(t, err)

	good, err := c.Encrypt(Payload{UserID: "u3"})
	require.NoError(t, err)
	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "u4",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	none, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]string{
		"empty":           "",
		"whitespace":      "   \t ",
		"malformed":       "not.a.jwt",
		"garbage":         "abc",
		"wrong secret":    foreign,
		"missing user id": noUser,
		"tampered":        tampered,
		"alg none":        none,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := c.Decrypt(tok)
			require.False(t, ok)
		})
	}
}

func TestDecrypt_Expired(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := issued
	c, err := NewCodec("secret", WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, err := c.Encrypt(Payload{UserID: "u1", ExpiresAt: issued.Add(TTL)})
	require.NoError(t, err)

	now = issued.Add(TTL - time.Minute)
	_, ok := c.Decrypt(tok)
	require.True(t, ok, "token must be valid just before expiry")

	now = issued.Add(TTL + time.Minute)
	_, ok = c.Decrypt(tok)
	require.False(t, ok, "token must be rejected after expiry")
}

func TestNewCodec_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := NewCodec("")
	require.ErrorIs(t, err, ErrEmptySecret)
}
