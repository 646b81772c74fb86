package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/models"
)

// GoogleFlow is the OAuth flow surface the handler drives.
type GoogleFlow interface {
	Authorize(ctx context.Context, action, identity string) (*auth.AuthorizeRequest, error)
	Callback(ctx context.Context, code, state, cookieNonce, refreshToken string) (*auth.Outcome, error)
}

// GoogleHandler serves the popup OAuth endpoints. The browser opens
// these in a popup window; the callback always answers with a small
// HTML page that messages the opener and closes itself.
type GoogleHandler struct {
	flow         GoogleFlow
	cookies      auth.CookieConfig
	refreshTTL   time.Duration
	pkceTTL      time.Duration
	clientOrigin string
	logger       *slog.Logger
}

func NewGoogleHandler(flow GoogleFlow, cookies auth.CookieConfig, refreshTTL, pkceTTL time.Duration, clientOrigin string, logger *slog.Logger) *GoogleHandler {
	return &GoogleHandler{
		flow:         flow,
		cookies:      cookies,
		refreshTTL:   refreshTTL,
		pkceTTL:      pkceTTL,
		clientOrigin: clientOrigin,
		logger:       logger,
	}
}

// AuthorizeRegister handles GET /auth/google/register.
func (h *GoogleHandler) AuthorizeRegister(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, models.ActionRegister)
}

// AuthorizeLogin handles GET /auth/google/login.
func (h *GoogleHandler) AuthorizeLogin(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, models.ActionLogin)
}

// AuthorizeConnect handles GET /auth/google/connect.
func (h *GoogleHandler) AuthorizeConnect(w http.ResponseWriter, r *http.Request) {
	h.authorize(w, r, models.ActionConnect)
}

func (h *GoogleHandler) authorize(w http.ResponseWriter, r *http.Request, action string) {
	req, err := h.flow.Authorize(r.Context(), action, r.URL.Query().Get("identity"))
	if err != nil {
		h.logger.Error("oauth authorize failed",
			slog.String("action", action), slog.Any("error", err))
		h.writePopup(w, "Something went wrong. Please try again.")
		return
	}

	auth.SetPKCECookie(w, req.Nonce, h.pkceTTL, h.cookies)
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// Callback handles GET /auth/google/callback. Whatever happens, the
// response is the popup-closing page; errors travel as the message.
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	auth.ClearPKCECookie(w, h.cookies)

	// provider-side denial (user cancelled, consent revoked). The
	// provider's own text goes to the popup verbatim; json.Marshal in
	// writePopup keeps it inert inside the script.
	if provErr := q.Get("error"); provErr != "" {
		h.logger.Warn("oauth provider returned error", slog.String("error", provErr))
		h.writePopup(w, "Google sign-in failed: "+provErr)
		return
	}

	cookieNonce, _ := auth.GetPKCECookie(r)
	refreshToken, _ := auth.GetRefreshTokenCookie(r)

	outcome, err := h.flow.Callback(r.Context(), q.Get("code"), q.Get("state"), cookieNonce, refreshToken)
	if err != nil {
		h.writePopup(w, popupMessage(err))
		return
	}

	// register/login mint a session; connect does not
	if outcome.Session != nil {
		auth.SetRefreshTokenCookie(w, outcome.Session.RefreshToken, h.refreshTTL, h.cookies)
	}
	h.writePopup(w, "")
}

// popupMessage maps reconcile errors to what the opener window shows.
// The federated sentinel messages are user-facing already; anything
// else collapses to a generic line.
func popupMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrAlreadyRegistered),
		errors.Is(err, models.ErrNotRegistered),
		errors.Is(err, models.ErrAccountMismatch),
		errors.Is(err, models.ErrPasswordRequired):
		return err.Error()
	case errors.Is(err, models.ErrUnauthenticated):
		return "Your sign-in attempt expired. Please try again."
	case errors.Is(err, models.ErrTransient):
		return "Google is not responding right now. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}

// writePopup renders the page that relays the outcome to the window
// that opened the popup. An empty message means success. The target
// origin is always the exact client origin, never a wildcard.
func (h *GoogleHandler) writePopup(w http.ResponseWriter, message string) {
	msgJSON, _ := json.Marshal(message)
	originJSON, _ := json.Marshal(h.clientOrigin)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	// keep window.opener alive across the cross-origin boundary
	w.Header().Set("Cross-Origin-Opener-Policy", "unsafe-none")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Signing in…</title></head>
<body>
<script>
  if (window.opener) {
    window.opener.postMessage({ message: %s }, %s);
  }
  window.close();
</script>
</body>
</html>
`, msgJSON, originJSON)

	if message != "" {
		h.logger.Info("oauth popup closed with error", slog.String("message", message))
	}
}
