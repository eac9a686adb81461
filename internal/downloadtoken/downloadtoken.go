// Package downloadtoken issues and verifies short-lived, job-scoped
// download links, generalizing the teacher's HMAC legacy-token pattern
// (internal/auth's LegacyClaims/ValidateLegacyToken) so a completed
// job's download URL can be shared without embedding the API key in a
// query string, per SPEC_FULL.md §6.3.
package downloadtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrJobMismatch is returned when a token is otherwise valid but was
// issued for a different job ID than the one being downloaded.
var ErrJobMismatch = errors.New("downloadtoken: token was not issued for this job")

// Claims embeds the job ID a token authorizes downloading, plus the
// standard registered claims for expiry.
type Claims struct {
	JobID string `json:"jobId"`
	jwt.RegisteredClaims
}

// Signer issues and verifies job-scoped download tokens with a single
// HMAC secret and a fixed expiry window.
type Signer struct {
	secret []byte
	expiry time.Duration
}

// NewSigner builds a Signer. expiryMins <= 0 falls back to 15 minutes,
// matching spec's default.
func NewSigner(secret string, expiryMins int) *Signer {
	if expiryMins <= 0 {
		expiryMins = 15
	}
	return &Signer{secret: []byte(secret), expiry: time.Duration(expiryMins) * time.Minute}
}

// Issue signs a token authorizing download of jobID for the signer's
// configured expiry window.
func (s *Signer) Issue(jobID string) (string, error) {
	claims := Claims{
		JobID: jobID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify parses tokenString and confirms it authorizes jobID and has
// not expired.
func (s *Signer) Verify(tokenString, jobID string) error {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	if claims.JobID != jobID {
		return ErrJobMismatch
	}
	return nil
}
