package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(reg RegistrationService, local auth.Strategy, tokens SessionTokens, verification TokenLifecycle) *AuthHandler {
	return NewAuthHandler(reg, local, tokens, verification,
		auth.CookieConfig{}, 7*24*time.Hour, &pkghttp.IPConfig{})
}

func postJSON(t *testing.T, path, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterHandler_Success(t *testing.T) {
	outcome := &auth.Outcome{
		User:    &models.User{ID: "user-1", Name: "Jane Doe", Username: "jane", Email: "jane@x.com"},
		Session: &auth.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
	}
	reg := &MockRegistrationService{
		RegisterFunc: func(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error) {
			assert.Equal(t, "Jane Doe", name)
			assert.Equal(t, "jane", username)
			return outcome, nil
		},
	}
	h := newTestAuthHandler(reg, &MockStrategy{}, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Register(rr, postJSON(t, "/auth/register",
		`{"name":"Jane Doe","username":"jane","email":"jane@x.com","pass":"Secret123"}`))

	assert.Equal(t, http.StatusCreated, rr.Code)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "access-1", resp.AccessToken)
	assert.Equal(t, "jane", resp.User.Username)

	cookie := findCookie(rr, "refresh_token")
	require.NotNil(t, cookie)
	assert.Equal(t, "refresh-1", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestRegisterHandler_ValidationMap(t *testing.T) {
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Register(rr, postJSON(t, "/auth/register", `{"name":"","username":"x","email":"nope","pass":""}`))

	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, pkghttp.CodeValidationFailed, resp.Code)
	assert.Contains(t, resp.Errors, "name")
	assert.Contains(t, resp.Errors, "username")
	assert.Contains(t, resp.Errors, "email")
	assert.Contains(t, resp.Errors, "pass")
}

func TestRegisterHandler_Conflict(t *testing.T) {
	reg := &MockRegistrationService{
		RegisterFunc: func(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error) {
			return nil, models.ErrConflict
		},
	}
	h := newTestAuthHandler(reg, &MockStrategy{}, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Register(rr, postJSON(t, "/auth/register",
		`{"name":"Jane","username":"jane","email":"jane@x.com","pass":"Secret123"}`))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginHandler_Success(t *testing.T) {
	local := &MockStrategy{
		AuthenticateFunc: func(ctx context.Context, creds auth.Credentials) (*auth.Outcome, error) {
			assert.Equal(t, auth.KindLocal, creds.Kind)
			assert.Equal(t, "jane", creds.EmailOrUsername)
			return &auth.Outcome{
				User:    &models.User{ID: "user-1", Username: "jane"},
				Session: &auth.TokenPair{AccessToken: "access-1", RefreshToken: "refresh-1"},
			}, nil
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, local, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/auth/login", `{"user":"jane","pass":"Secret123"}`))

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, findCookie(rr, "refresh_token"))
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/auth/login", `{"user":"jane","pass":"wrong"}`))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, pkghttp.CodeUnauthenticated, resp.Code)
}

func TestLoginHandler_RateLimited(t *testing.T) {
	local := &MockStrategy{
		AuthenticateFunc: func(ctx context.Context, creds auth.Credentials) (*auth.Outcome, error) {
			return nil, &models.RateLimitedError{RetryAfter: 5 * time.Minute}
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, local, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Login(rr, postJSON(t, "/auth/login", `{"user":"jane","pass":"Secret123"}`))

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "300", rr.Header().Get("Retry-After"))
}

func TestRefreshHandler(t *testing.T) {
	tokens := &MockSessionTokens{
		RotateFunc: func(ctx context.Context, refreshToken string) (*auth.TokenPair, string, error) {
			switch refreshToken {
			case "live-token":
				return &auth.TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, "user-1", nil
			case "unreachable":
				return nil, "", models.ErrTransient
			}
			return nil, "", models.ErrUnauthenticated
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, tokens, &MockTokenLifecycle{})

	t.Run("no cookie", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Refresh(rr, httptest.NewRequest(http.MethodPost, "/auth/refresh", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("stale cookie cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "stale"})
		rr := httptest.NewRecorder()
		h.Refresh(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		cookie := findCookie(rr, "refresh_token")
		require.NotNil(t, cookie)
		assert.Equal(t, -1, cookie.MaxAge)
	})

	t.Run("rotation replaces cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "live-token"})
		rr := httptest.NewRecorder()
		h.Refresh(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		cookie := findCookie(rr, "refresh_token")
		require.NotNil(t, cookie)
		assert.Equal(t, "new-refresh", cookie.Value)

		var resp map[string]string
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "new-access", resp["access_token"])
	})

	t.Run("store outage keeps cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
		req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "unreachable"})
		rr := httptest.NewRecorder()
		h.Refresh(rr, req)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Nil(t, findCookie(rr, "refresh_token"))
	})

	t.Run("token accepted in body without cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{"refresh_token":"live-token"}`))
		rr := httptest.NewRecorder()
		h.Refresh(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		cookie := findCookie(rr, "refresh_token")
		require.NotNil(t, cookie)
		assert.Equal(t, "new-refresh", cookie.Value)
	})
}

func TestLogoutHandler(t *testing.T) {
	var revoked string
	tokens := &MockSessionTokens{
		RevokeFunc: func(ctx context.Context, refreshToken string) error {
			revoked = refreshToken
			return nil
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, tokens, &MockTokenLifecycle{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "live-token"})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "live-token", revoked)
	cookie := findCookie(rr, "refresh_token")
	require.NotNil(t, cookie)
	assert.Equal(t, -1, cookie.MaxAge)
}

func TestLogoutHandler_NoSessionStillSucceeds(t *testing.T) {
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, &MockTokenLifecycle{})

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestLogoutAllHandler(t *testing.T) {
	var revokedUser string
	tokens := &MockSessionTokens{
		RevokeAllFunc: func(ctx context.Context, userID string) error {
			revokedUser = userID
			return nil
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, tokens, &MockTokenLifecycle{})

	req := asPrincipal(httptest.NewRequest(http.MethodPost, "/auth/logout-all", nil), &store.CachedProfile{ID: "user-1"})
	rr := httptest.NewRecorder()
	h.LogoutAll(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "user-1", revokedUser)
}

func TestVerifyEmailHandler(t *testing.T) {
	verification := &MockTokenLifecycle{
		VerifyEmailFunc: func(ctx context.Context, token string) (string, error) {
			if token == "good" {
				return "user-1", nil
			}
			return "", models.ErrInvalidOrExpiredToken
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, verification)

	rr := httptest.NewRecorder()
	h.VerifyEmail(rr, postJSON(t, "/auth/verify-email", `{"token":"good"}`))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	h.VerifyEmail(rr, postJSON(t, "/auth/verify-email", `{"token":"burned"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, pkghttp.CodeInvalidToken, resp.Code)
}

func TestForgotPasswordHandler_AlwaysAccepted(t *testing.T) {
	var requested string
	verification := &MockTokenLifecycle{
		SendPasswordResetEmailFunc: func(ctx context.Context, identifier string) error {
			requested = identifier
			return nil
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, verification)

	rr := httptest.NewRecorder()
	h.ForgotPassword(rr, postJSON(t, "/auth/forgot-password", `{"user":"ghost@x.com"}`))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "ghost@x.com", requested)
}

func TestResetPasswordHandler(t *testing.T) {
	verification := &MockTokenLifecycle{
		ResetPasswordFunc: func(ctx context.Context, token, newPassword string) error {
			if token != "good" {
				return models.ErrInvalidOrExpiredToken
			}
			return nil
		},
	}
	h := newTestAuthHandler(&MockRegistrationService{}, &MockStrategy{}, &MockSessionTokens{}, verification)

	rr := httptest.NewRecorder()
	h.ResetPassword(rr, postJSON(t, "/auth/reset-password", `{"token":"good","pass":"NewSecret123"}`))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ResetPassword(rr, postJSON(t, "/auth/reset-password", `{"token":"burned","pass":"NewSecret123"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
