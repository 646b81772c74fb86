package auth

import (
	"context"

	"github.com/avelhart/shelfmark/internal/models"
)

// MockUserStore implements UserStore for testing
type MockUserStore struct {
	CreateFunc               func(ctx context.Context, user *models.User) (*models.User, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.User, error)
	GetByEmailOrUsernameFunc func(ctx context.Context, identifier string) (*models.User, error)
	GetByGoogleIDFunc        func(ctx context.Context, googleID string) (*models.User, error)
	GetByAPIKeyHashFunc      func(ctx context.Context, hash string) (*models.User, error)
	UsernameExistsFunc       func(ctx context.Context, username string) (bool, error)
	SetPasswordFunc          func(ctx context.Context, id, passwordHash string) error
	SetVerifiedFunc          func(ctx context.Context, id string, verified bool) error
	SetGoogleIDFunc          func(ctx context.Context, id string, googleID *string) error
}

func (m *MockUserStore) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error) {
	if m.GetByEmailOrUsernameFunc != nil {
		return m.GetByEmailOrUsernameFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if m.GetByGoogleIDFunc != nil {
		return m.GetByGoogleIDFunc(ctx, googleID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	if m.GetByAPIKeyHashFunc != nil {
		return m.GetByAPIKeyHashFunc(ctx, hash)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	if m.UsernameExistsFunc != nil {
		return m.UsernameExistsFunc(ctx, username)
	}
	return false, nil
}

func (m *MockUserStore) SetPassword(ctx context.Context, id, passwordHash string) error {
	if m.SetPasswordFunc != nil {
		return m.SetPasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserStore) SetVerified(ctx context.Context, id string, verified bool) error {
	if m.SetVerifiedFunc != nil {
		return m.SetVerifiedFunc(ctx, id, verified)
	}
	return nil
}

func (m *MockUserStore) SetGoogleID(ctx context.Context, id string, googleID *string) error {
	if m.SetGoogleIDFunc != nil {
		return m.SetGoogleIDFunc(ctx, id, googleID)
	}
	return nil
}

// MockEmailSender implements EmailSender for testing
type MockEmailSender struct {
	SendVerificationEmailFunc  func(ctx context.Context, email, token string) error
	SendPasswordResetEmailFunc func(ctx context.Context, email, token string) error
}

func (m *MockEmailSender) SendVerificationEmail(ctx context.Context, email, token string) error {
	if m.SendVerificationEmailFunc != nil {
		return m.SendVerificationEmailFunc(ctx, email, token)
	}
	return nil
}

func (m *MockEmailSender) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	if m.SendPasswordResetEmailFunc != nil {
		return m.SendPasswordResetEmailFunc(ctx, email, token)
	}
	return nil
}

// MockRateLimiter implements RateLimiter for testing
type MockRateLimiter struct {
	CheckFunc         func(ctx context.Context, clientIP, identity string) error
	RecordFailureFunc func(ctx context.Context, clientIP, identity string) error
}

func (m *MockRateLimiter) Check(ctx context.Context, clientIP, identity string) error {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, clientIP, identity)
	}
	return nil
}

func (m *MockRateLimiter) RecordFailure(ctx context.Context, clientIP, identity string) error {
	if m.RecordFailureFunc != nil {
		return m.RecordFailureFunc(ctx, clientIP, identity)
	}
	return nil
}
