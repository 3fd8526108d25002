package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimit returns an HTTP middleware that limits requests per client IP
// to the given number per minute. Over-limit requests get a JSON 429. A
// non-positive limit disables limiting.
//
// The key is the connection's RemoteAddr. Forwarding headers are only
// honoured when the server runs chi's RealIP ahead of this middleware, which
// it does only behind a configured trusted proxy.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many attempts. Please wait a minute and try again.")
		}),
	)
}
