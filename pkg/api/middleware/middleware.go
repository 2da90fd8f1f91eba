package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/cbodonnell/duelsync/pkg/log"
)

// NewAuthMiddleware requires the bearer token on every request.
// An empty token disables the check.
func NewAuthMiddleware(token string, logger *log.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			bearerToken, err := parseBearerToken(r)
			if err != nil {
				// browsers cannot set headers on a websocket upgrade
				bearerToken = r.URL.Query().Get("token")
				if bearerToken == "" {
					logger.Debug("failed to parse bearer token: %v", err)
					http.Error(w, "failed to parse bearer token", http.StatusUnauthorized)
					return
				}
			}

			if subtle.ConstantTimeCompare([]byte(bearerToken), []byte(token)) != 1 {
				logger.Warn("rejected request to %s with an invalid token", r.URL.Path)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows the diagnostics endpoints to be read from a browser tool.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseBearerToken parses the bearer token from the Authorization header
func parseBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	return parts[1], nil
}
