package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const (
	CallerKey contextKey = "caller"
	APIKeyKey contextKey = "api_key"
)

// APIKeyAuth validates the API key from the Authorization header.
// validKeys maps caller name -> key; an empty map disables auth.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(validKeys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			// Health and the websocket upgrade stay open; the hub only
			// pushes events, it accepts no commands.
			if r.URL.Path == "/health" || r.URL.Path == "/ws" {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "missing Authorization header", http.StatusUnauthorized)
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				http.Error(w, "invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			// constant-time comparison to prevent timing attacks
			valid := false
			var caller string
			for name, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					caller = name
					break
				}
			}
			if !valid {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), CallerKey, caller)
			ctx = context.WithValue(ctx, APIKeyKey, apiKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerFromContext extracts the authenticated caller name. Approve
// endpoints record it as the approver.
func GetCallerFromContext(ctx context.Context) string {
	if caller, ok := ctx.Value(CallerKey).(string); ok {
		return caller
	}
	return ""
}
