package middleware

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/internal/server/response"
)

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	APIKey      string // Empty disables authentication
	HeaderName  string
	PublicPaths []string
}

// DefaultAuthConfig returns the webhook defaults: X-API-Key header, health
// check public.
func DefaultAuthConfig(apiKey string) AuthConfig {
	return AuthConfig{
		APIKey:      apiKey,
		HeaderName:  "X-API-Key",
		PublicPaths: []string{"/healthz"},
	}
}

// Auth rejects requests to protected paths that lack the shared key, given
// either in the configured header or as a bearer token.
func Auth(config AuthConfig, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.APIKey == "" || slices.Contains(config.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := extractAPIKey(r, config.HeaderName)
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.APIKey)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", apiKey != "").
					Msg("Authentication failed")
				response.Unauthorized(w, "Invalid or missing API key",
					"Provide a valid API key in the "+config.HeaderName+" header")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request, header string) string {
	if key := r.Header.Get(header); key != "" {
		return key
	}
	if auth, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return auth
	}
	return ""
}
