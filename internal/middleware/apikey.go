package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/redubline/api/pkg/response"
)

// APIKeyAuth replaces the teacher's JWT/Zitadel authentication with a
// flat API-key allowlist, matching spec.md §6's auth model: no user
// accounts, no sessions, one shared secret per client. Disabled
// entirely when cfg.Enabled is false, for local development.
type APIKeyAuth struct {
	enabled bool
	keys    map[string]bool
}

// NewAPIKeyAuth builds the middleware from the configured key list.
func NewAPIKeyAuth(enabled bool, keys []string) *APIKeyAuth {
	set := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = true
		}
	}
	return &APIKeyAuth{enabled: enabled, keys: set}
}

// Require checks the X-API-Key header (or a bearer-style Authorization
// header, for clients that prefer it) against the configured allowlist.
func (a *APIKeyAuth) Require() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.enabled {
			return c.Next()
		}
		key := c.Get("X-API-Key")
		if key == "" {
			key = bearerToken(c.Get("Authorization"))
		}
		if key == "" || !a.valid(key) {
			return response.Unauthorized(c, "missing or invalid API key")
		}
		return c.Next()
	}
}

func (a *APIKeyAuth) valid(key string) bool {
	for k := range a.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
