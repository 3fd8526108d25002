package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKeyAuth string

// AdminTokenKey is the context key for the verified admin session token.
const AdminTokenKey contextKeyAuth = "admin_token"

// TokenVerifier checks admin session tokens.
type TokenVerifier interface {
	VerifyAdminToken(token string) bool
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// RequireAdmin returns an HTTP middleware that only lets through requests
// carrying a live admin session token. The token is attached to the request
// context so that logout can revoke it.
func RequireAdmin(sessions TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" || !sessions.VerifyAdminToken(token) {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), AdminTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminToken extracts the verified admin token from the context.
// Returns an empty string outside RequireAdmin.
func GetAdminToken(ctx context.Context) string {
	if t, ok := ctx.Value(AdminTokenKey).(string); ok {
		return t
	}
	return ""
}

// writeError writes the {"error": "..."} envelope. The handler package has
// its own copy; importing it here would create a cycle.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
