package middleware

import "net/http"

// SecurityHeadersConfig holds security headers configuration.
type SecurityHeadersConfig struct {
	Env string
}

// SecurityHeaders adds browser security headers to every response.
// The API serves JSON plus one HTML page (the OAuth popup callback),
// so the CSP allows the inline script that page needs.
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			w.Header().Set("Content-Security-Policy",
				"default-src 'none'; "+
					"script-src 'unsafe-inline'; "+
					"frame-ancestors 'none'; "+
					"base-uri 'none'; "+
					"form-action 'none'")

			// Handlers that legitimately open a cross-origin opener
			// channel (the OAuth popup) override this per response.
			w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
			w.Header().Set("Cross-Origin-Resource-Policy", "same-site")

			w.Header().Set("Permissions-Policy",
				"accelerometer=(), camera=(), geolocation=(), microphone=(), payment=(), usb=()")

			if config.Env == "production" && (r.Header.Get("X-Forwarded-Proto") == "https" || r.URL.Scheme == "https") {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
