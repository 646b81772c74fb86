package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/services"
	"github.com/avelhart/shelfmark/internal/store"
)

// MockRegistrationService implements RegistrationService for testing
type MockRegistrationService struct {
	RegisterFunc           func(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error)
	ResendVerificationFunc func(ctx context.Context, email string) error
}

func (m *MockRegistrationService) Register(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, name, username, email, password, fp, clientIP)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRegistrationService) ResendVerification(ctx context.Context, email string) error {
	if m.ResendVerificationFunc != nil {
		return m.ResendVerificationFunc(ctx, email)
	}
	return nil
}

// MockStrategy implements auth.Strategy for testing
type MockStrategy struct {
	AuthenticateFunc func(ctx context.Context, creds auth.Credentials) (*auth.Outcome, error)
}

func (m *MockStrategy) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Outcome, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, creds)
	}
	return nil, models.ErrInvalidCredentials
}

// MockSessionTokens implements SessionTokens for testing
type MockSessionTokens struct {
	RotateFunc    func(ctx context.Context, refreshToken string) (*auth.TokenPair, string, error)
	RevokeFunc    func(ctx context.Context, refreshToken string) error
	RevokeAllFunc func(ctx context.Context, userID string) error
}

func (m *MockSessionTokens) Rotate(ctx context.Context, refreshToken string) (*auth.TokenPair, string, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, refreshToken)
	}
	return nil, "", models.ErrUnauthenticated
}

func (m *MockSessionTokens) Revoke(ctx context.Context, refreshToken string) error {
	if m.RevokeFunc != nil {
		return m.RevokeFunc(ctx, refreshToken)
	}
	return nil
}

func (m *MockSessionTokens) RevokeAll(ctx context.Context, userID string) error {
	if m.RevokeAllFunc != nil {
		return m.RevokeAllFunc(ctx, userID)
	}
	return nil
}

// MockTokenLifecycle implements TokenLifecycle for testing
type MockTokenLifecycle struct {
	VerifyEmailFunc            func(ctx context.Context, token string) (string, error)
	SendPasswordResetEmailFunc func(ctx context.Context, identifier string) error
	ResetPasswordFunc          func(ctx context.Context, token, newPassword string) error
}

func (m *MockTokenLifecycle) VerifyEmail(ctx context.Context, token string) (string, error) {
	if m.VerifyEmailFunc != nil {
		return m.VerifyEmailFunc(ctx, token)
	}
	return "", models.ErrInvalidOrExpiredToken
}

func (m *MockTokenLifecycle) SendPasswordResetEmail(ctx context.Context, identifier string) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, identifier)
	}
	return nil
}

func (m *MockTokenLifecycle) ResetPassword(ctx context.Context, token, newPassword string) error {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, token, newPassword)
	}
	return nil
}

// MockGoogleFlow implements GoogleFlow for testing
type MockGoogleFlow struct {
	AuthorizeFunc func(ctx context.Context, action, identity string) (*auth.AuthorizeRequest, error)
	CallbackFunc  func(ctx context.Context, code, state, cookieNonce, refreshToken string) (*auth.Outcome, error)
}

func (m *MockGoogleFlow) Authorize(ctx context.Context, action, identity string) (*auth.AuthorizeRequest, error) {
	if m.AuthorizeFunc != nil {
		return m.AuthorizeFunc(ctx, action, identity)
	}
	return nil, models.ErrInternalServer
}

func (m *MockGoogleFlow) Callback(ctx context.Context, code, state, cookieNonce, refreshToken string) (*auth.Outcome, error) {
	if m.CallbackFunc != nil {
		return m.CallbackFunc(ctx, code, state, cookieNonce, refreshToken)
	}
	return nil, models.ErrUnauthenticated
}

// MockAccountService implements AccountService for testing
type MockAccountService struct {
	GetFunc            func(ctx context.Context, userID string) (*models.User, error)
	UpdateSettingsFunc func(ctx context.Context, userID string, update services.SettingsUpdate) (*models.User, error)
	ChangePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
	RotateAPIKeyFunc   func(ctx context.Context, userID string) (string, error)
	RevokeAPIKeyFunc   func(ctx context.Context, userID string) error
	TerminateFunc      func(ctx context.Context, userID, password string) error
	PhotoFunc          func(ctx context.Context, userID string) ([]byte, string, error)
}

func (m *MockAccountService) Get(ctx context.Context, userID string) (*models.User, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountService) UpdateSettings(ctx context.Context, userID string, update services.SettingsUpdate) (*models.User, error) {
	if m.UpdateSettingsFunc != nil {
		return m.UpdateSettingsFunc(ctx, userID, update)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.ChangePasswordFunc != nil {
		return m.ChangePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

func (m *MockAccountService) RotateAPIKey(ctx context.Context, userID string) (string, error) {
	if m.RotateAPIKeyFunc != nil {
		return m.RotateAPIKeyFunc(ctx, userID)
	}
	return "", models.ErrInternalServer
}

func (m *MockAccountService) RevokeAPIKey(ctx context.Context, userID string) error {
	if m.RevokeAPIKeyFunc != nil {
		return m.RevokeAPIKeyFunc(ctx, userID)
	}
	return nil
}

func (m *MockAccountService) Terminate(ctx context.Context, userID, password string) error {
	if m.TerminateFunc != nil {
		return m.TerminateFunc(ctx, userID, password)
	}
	return nil
}

func (m *MockAccountService) Photo(ctx context.Context, userID string) ([]byte, string, error) {
	if m.PhotoFunc != nil {
		return m.PhotoFunc(ctx, userID)
	}
	return nil, "", models.ErrNotFound
}

// asPrincipal attaches an authenticated profile to the request, the way
// the guard middleware would.
func asPrincipal(r *http.Request, profile *store.CachedProfile) *http.Request {
	ctx := context.WithValue(r.Context(), auth.UserContextKey, &auth.Principal{Profile: profile, Scheme: "bearer"})
	return r.WithContext(ctx)
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
