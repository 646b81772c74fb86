package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/models"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
)

// RegistrationService defines the local account creation surface.
type RegistrationService interface {
	Register(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error)
	ResendVerification(ctx context.Context, email string) error
}

// SessionTokens is the token lifecycle surface the handler needs.
type SessionTokens interface {
	Rotate(ctx context.Context, refreshToken string) (*auth.TokenPair, string, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID string) error
}

// TokenLifecycle is the single-use token surface (email verification
// and password reset).
type TokenLifecycle interface {
	VerifyEmail(ctx context.Context, token string) (string, error)
	SendPasswordResetEmail(ctx context.Context, identifier string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// AuthHandler handles the local authentication routes.
type AuthHandler struct {
	registration RegistrationService
	local        auth.Strategy
	tokens       SessionTokens
	verification TokenLifecycle
	cookies      auth.CookieConfig
	refreshTTL   time.Duration
	ipConfig     *pkghttp.IPConfig
}

func NewAuthHandler(
	registration RegistrationService,
	local auth.Strategy,
	tokens SessionTokens,
	verification TokenLifecycle,
	cookies auth.CookieConfig,
	refreshTTL time.Duration,
	ipConfig *pkghttp.IPConfig,
) *AuthHandler {
	return &AuthHandler{
		registration: registration,
		local:        local,
		tokens:       tokens,
		verification: verification,
		cookies:      cookies,
		refreshTTL:   refreshTTL,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Pass     string `json:"pass" validate:"required"`
	Identity string `json:"identity,omitempty"`
}

type LoginRequest struct {
	User     string `json:"user" validate:"required"`
	Pass     string `json:"pass" validate:"required"`
	Identity string `json:"identity,omitempty"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type ResendVerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ForgotPasswordRequest struct {
	User string `json:"user" validate:"required"`
}

type ResetPasswordRequest struct {
	Token string `json:"token" validate:"required"`
	Pass  string `json:"pass" validate:"required"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)
	outcome, err := h.registration.Register(r.Context(), req.Name, req.Username, req.Email, req.Pass,
		auth.DecodeIdentity(req.Identity), clientIP)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeSession(w, http.StatusCreated, outcome)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	outcome, err := h.local.Authenticate(r.Context(), auth.Credentials{
		Kind:            auth.KindLocal,
		EmailOrUsername: req.User,
		Password:        req.Pass,
		Fingerprint:     auth.DecodeIdentity(req.Identity),
		ClientIP:        pkghttp.ExtractClientIP(r, h.ipConfig),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.writeSession(w, http.StatusOK, outcome)
}

// Refresh handles POST /auth/refresh. The refresh token comes from the
// cookie, or from the body for clients that cannot hold cookies;
// rotation invalidates it and sets the replacement.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, err := auth.GetRefreshTokenCookie(r)
	if err != nil || refreshToken == "" {
		var req RefreshRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		refreshToken = req.RefreshToken
	}
	if refreshToken == "" {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	pair, _, err := h.tokens.Rotate(r.Context(), refreshToken)
	if err != nil {
		// a store outage does not invalidate the token; only clear the
		// cookie when the session itself is dead
		if !errors.Is(err, models.ErrTransient) {
			auth.ClearRefreshTokenCookie(w, h.cookies)
		}
		writeDomainError(w, err)
		return
	}

	auth.SetRefreshTokenCookie(w, pair.RefreshToken, h.refreshTTL, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"access_token": pair.AccessToken})
}

// Logout handles POST /auth/logout. Always succeeds, even with no live
// session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken, err := auth.GetRefreshTokenCookie(r); err == nil {
		if err := h.tokens.Revoke(r.Context(), refreshToken); err != nil {
			writeDomainError(w, err)
			return
		}
	}

	auth.ClearRefreshTokenCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all. Requires a live session.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	if err := h.tokens.RevokeAll(r.Context(), profile.ID); err != nil {
		writeDomainError(w, err)
		return
	}

	auth.ClearRefreshTokenCookie(w, h.cookies)
	w.WriteHeader(http.StatusNoContent)
}

// VerifyEmail handles POST /auth/verify-email.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	if _, err := h.verification.VerifyEmail(r.Context(), req.Token); err != nil {
		writeDomainError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

// ResendVerification handles POST /auth/resend-verification. Responds
// 202 regardless of whether the account exists.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	if err := h.registration.ResendVerification(r.Context(), req.Email); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ForgotPassword handles POST /auth/forgot-password. Responds 202
// regardless of whether the account exists.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	if err := h.verification.SendPasswordResetEmail(r.Context(), req.User); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ResetPassword handles POST /auth/reset-password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	if err := h.verification.ResetPassword(r.Context(), req.Token, req.Pass); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, outcome *auth.Outcome) {
	auth.SetRefreshTokenCookie(w, outcome.Session.RefreshToken, h.refreshTTL, h.cookies)
	pkghttp.WriteJSON(w, status, SessionResponse{
		User:        newUserResponse(outcome.User),
		AccessToken: outcome.Session.AccessToken,
	})
}
