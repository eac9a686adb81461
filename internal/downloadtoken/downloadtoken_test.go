package downloadtoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	s := NewSigner("secret", 15)

	token, err := s.Issue("job-123")
	require.NoError(t, err)

	err = s.Verify(token, "job-123")
	assert.NoError(t, err)
}

func TestVerifyRejectsMismatchedJobID(t *testing.T) {
	s := NewSigner("secret", 15)

	token, err := s.Issue("job-123")
	require.NoError(t, err)

	err = s.Verify(token, "job-456")
	assert.ErrorIs(t, err, ErrJobMismatch)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	s := NewSigner("secret", -1) // NewSigner floors non-positive to 15m, so build the claims by hand
	claims := Claims{
		JobID: "job-123",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)

	err = s.Verify(signed, "job-123")
	assert.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewSigner("secret-a", 15)
	verifier := NewSigner("secret-b", 15)

	token, err := issuer.Issue("job-123")
	require.NoError(t, err)

	err = verifier.Verify(token, "job-123")
	assert.Error(t, err)
}

func TestNewSignerDefaultsExpiry(t *testing.T) {
	s := NewSigner("secret", 0)
	assert.Equal(t, 15*time.Minute, s.expiry)
}
