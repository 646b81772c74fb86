package auth

import (
	"net/http"
	"time"
)

const (
	refreshCookieName = "refresh_token"
	pkceCookieName    = "pkce"

	// the pkce cookie only needs to survive the provider round trip
	pkceCookiePath = "/auth/google"
)

// CookieConfig holds the attributes shared by every auth cookie.
type CookieConfig struct {
	Domain string
	Secure bool
}

// SetRefreshTokenCookie stores the refresh token in an httpOnly cookie
// so scripts in the page can never read it.
func SetRefreshTokenCookie(w http.ResponseWriter, refreshToken string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearRefreshTokenCookie removes the refresh token cookie.
func ClearRefreshTokenCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetRefreshTokenCookie retrieves the refresh token from the request.
func GetRefreshTokenCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}

// SetPKCECookie binds the OAuth authorize request to this browser: the
// nonce here must match the one inside the state parameter when the
// provider calls back.
func SetPKCECookie(w http.ResponseWriter, nonce string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     pkceCookieName,
		Value:    nonce,
		Path:     pkceCookiePath,
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearPKCECookie removes the pkce cookie after the callback settles.
func ClearPKCECookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     pkceCookieName,
		Value:    "",
		Path:     pkceCookiePath,
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetPKCECookie retrieves the pkce nonce from the request.
func GetPKCECookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(pkceCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
