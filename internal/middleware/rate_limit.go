package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/avelhart/shelfmark/pkg/http"
	"github.com/go-chi/httprate"
)

// ThrottleConfig holds the per-IP request ceiling for a route group.
// This is a coarse volumetric limit; the credential-aware limiter in
// the services layer handles brute-force protection separately.
type ThrottleConfig struct {
	RequestsPerMinute int
}

// DefaultAuthThrottle is the ceiling for unauthenticated auth routes.
func DefaultAuthThrottle() ThrottleConfig {
	return ThrottleConfig{RequestsPerMinute: 30}
}

// ThrottleByIP rejects requests beyond the configured rate with 429.
func ThrottleByIP(config ThrottleConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteRateLimited(w, time.Minute)
		}),
	)
}
