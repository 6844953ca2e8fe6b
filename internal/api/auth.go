package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// tokenQueryParam carries the key for clients that cannot set headers on a
// WebSocket upgrade.
const tokenQueryParam = "access_token"

// ValidateAPIKey returns true if providedKey matches configKey.
// If configKey is empty, callers should treat the API as effectively disabled.
func ValidateAPIKey(providedKey string, configKey string) bool {
	if configKey == "" || providedKey == "" {
		return false
	}
	if len(providedKey) != len(configKey) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(providedKey), []byte(configKey)) == 1
}

// ExtractAPIKey extracts an API key from an Authorization: Bearer <key> header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	key := strings.TrimSpace(auth[len(prefix):])
	if key == "" {
		return "", errors.New("missing API key")
	}
	return key, nil
}

// authMiddleware requires the configured API key as a bearer token or,
// failing that, the access_token query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := ExtractAPIKey(r)
		if err != nil {
			apiKey = r.URL.Query().Get(tokenQueryParam)
		}
		if apiKey == "" {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if !ValidateAPIKey(apiKey, s.config.APIKey) {
			s.writeError(w, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
