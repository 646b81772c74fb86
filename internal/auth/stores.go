package auth

import (
	"context"

	"github.com/avelhart/shelfmark/internal/models"
)

// UserStore is the slice of the identity store the authentication
// strategies depend on. Implemented by repositories.UserRepository.
type UserStore interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmailOrUsername(ctx context.Context, identifier string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	SetGoogleID(ctx context.Context, id string, googleID *string) error
}

// EmailSender delivers verification and password-reset tokens. Email
// templating and transport live behind this boundary.
type EmailSender interface {
	SendVerificationEmail(ctx context.Context, email, token string) error
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}
