package auth

import (
	"testing"
	"time"

	"github.com/Abraxas-365/wagate/errx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	v, err := NewTokenVerifier("s3cret", WithAudience("hooks"), WithClock(clock))
	require.NoError(t, err)

	token, err := v.Issue("sales", time.Hour)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		claims, err := v.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, "sales", claims.Instance)
		assert.Equal(t, "sales", claims.Subject)
		assert.Equal(t, "wagate", claims.Issuer)
	})

	t.Run("bearer header", func(t *testing.T) {
		claims, err := v.VerifyHeader("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "sales", claims.Instance)

		_, err = v.VerifyHeader("Basic abc")
		assert.True(t, errx.IsCode(err, ErrMissingToken))
	})

	t.Run("expired token", func(t *testing.T) {
		later, err := NewTokenVerifier("s3cret", WithAudience("hooks"), WithClock(func() time.Time {
			return now.Add(2 * time.Hour)
		}))
		require.NoError(t, err)

		_, err = later.Verify(token)
		assert.True(t, errx.IsCode(err, ErrExpiredToken))
		assert.True(t, IsUnauthorized(err))
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewTokenVerifier("other", WithAudience("hooks"), WithClock(clock))
		require.NoError(t, err)

		_, err = other.Verify(token)
		assert.True(t, errx.IsCode(err, ErrInvalidToken))
	})

	t.Run("wrong audience", func(t *testing.T) {
		other, err := NewTokenVerifier("s3cret", WithAudience("elsewhere"), WithClock(clock))
		require.NoError(t, err)

		_, err = other.Verify(token)
		assert.True(t, errx.IsCode(err, ErrInvalidToken))
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "sales"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Verify(unsigned)
		assert.True(t, errx.IsCode(err, ErrInvalidToken))
	})
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier("")
	assert.True(t, errx.IsCode(err, ErrMissingSecret))
}
