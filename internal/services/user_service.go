package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/avatar"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkgauth "github.com/avelhart/shelfmark/pkg/auth"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
)

const maxPhotoBytes = 1 << 20 // 1 MiB

// UserRepository is the persistence surface the account service needs.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, user *models.User) (*models.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	SetAPIKeyHash(ctx context.Context, id string, hash *string) error
	Delete(ctx context.Context, id string) error
}

// SettingsUpdate carries the mutable profile fields. Nil pointers mean
// "leave unchanged".
type SettingsUpdate struct {
	Name     *string
	Username *string
	Photo    []byte
}

// UserService owns account mutations outside the authentication flows:
// settings, passwords, API keys and termination.
type UserService struct {
	repo            UserRepository
	tokens          *auth.TokenService
	keys            *auth.APIKeyManager
	store           *store.Store
	profileCacheTTL time.Duration
	logger          *slog.Logger
	audit           *pkglogger.AuditLogger
}

func NewUserService(
	repo UserRepository,
	tokens *auth.TokenService,
	keys *auth.APIKeyManager,
	sessionStore *store.Store,
	profileCacheTTL time.Duration,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *UserService {
	return &UserService{
		repo:            repo,
		tokens:          tokens,
		keys:            keys,
		store:           sessionStore,
		profileCacheTTL: profileCacheTTL,
		logger:          logger,
		audit:           audit,
	}
}

// UpdateSettings applies a partial profile update. An empty photo slice
// regenerates the initials avatar from the (possibly updated) name.
func (s *UserService) UpdateSettings(ctx context.Context, userID string, update SettingsUpdate) (*models.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return nil, &models.ValidationError{Fields: map[string]string{"name": "name must not be empty"}}
		}
		user.Name = name
	}

	if update.Username != nil {
		username := strings.TrimSpace(strings.ToLower(*update.Username))
		if err := validateUsername(username); err != nil {
			return nil, &models.ValidationError{Fields: map[string]string{"username": err.Error()}}
		}
		if username != user.Username {
			exists, err := s.repo.UsernameExists(ctx, username)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, models.ErrConflict
			}
			user.Username = username
		}
	}

	if update.Photo != nil {
		if len(update.Photo) == 0 {
			user.Photo = avatar.Generate(user.Name)
		} else {
			if len(update.Photo) > maxPhotoBytes {
				return nil, &models.ValidationError{Fields: map[string]string{"photo": "photo must be 1 MiB or smaller"}}
			}
			if avatar.Sniff(update.Photo) == avatar.FormatUnknown {
				return nil, &models.ValidationError{Fields: map[string]string{"photo": "photo must be a JPEG, PNG, GIF or SVG image"}}
			}
			user.Photo = update.Photo
		}
	}

	updated, err := s.repo.UpdateProfile(ctx, userID, user)
	if err != nil {
		return nil, err
	}

	s.refreshMirror(ctx, updated)
	s.audit.LogAccountAction("settings_updated", userID, "", nil)
	return updated, nil
}

// ChangePassword sets a new password. Accounts that already have one
// must present it; accounts created through Google set their first
// password without a current one. Every live session is revoked.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		if currentPassword == "" {
			return &models.ValidationError{Fields: map[string]string{"currentPass": "current password is required"}}
		}
		if err := pkgauth.ComparePassword(*user.PasswordHash, currentPassword); err != nil {
			return models.ErrInvalidCredentials
		}
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{Fields: map[string]string{"pass": err.Error()}}
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.SetPassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		s.logger.Error("failed to revoke sessions after password change",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	s.audit.LogAccountAction("password_changed", userID, "", nil)
	return nil
}

// RotateAPIKey mints a fresh API key, replacing any existing one. The
// plaintext is returned exactly once and never stored.
func (s *UserService) RotateAPIKey(ctx context.Context, userID string) (string, error) {
	plainKey, hash, err := s.keys.GenerateAPIKey()
	if err != nil {
		return "", err
	}

	if err := s.repo.SetAPIKeyHash(ctx, userID, &hash); err != nil {
		return "", err
	}

	s.refreshMirrorByID(ctx, userID)
	s.audit.LogAccountAction("api_key_rotated", userID, "", nil)
	return plainKey, nil
}

// RevokeAPIKey deletes the stored key hash. Idempotent.
func (s *UserService) RevokeAPIKey(ctx context.Context, userID string) error {
	if err := s.repo.SetAPIKeyHash(ctx, userID, nil); err != nil {
		return err
	}

	s.refreshMirrorByID(ctx, userID)
	s.audit.LogAccountAction("api_key_revoked", userID, "", nil)
	return nil
}

// Terminate deletes the account and everything hanging off it: sessions,
// the profile mirror, the database row. The password must be presented
// when one exists.
func (s *UserService) Terminate(ctx context.Context, userID, password string) error {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.HasPassword() {
		if err := pkgauth.ComparePassword(*user.PasswordHash, password); err != nil {
			return models.ErrInvalidCredentials
		}
	}

	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}

	if err := s.tokens.RevokeAll(ctx, userID); err != nil {
		s.logger.Error("failed to revoke sessions during termination",
			slog.String("user_id", userID), slog.Any("error", err))
	}
	if err := s.store.DropProfile(ctx, userID); err != nil {
		s.logger.Warn("failed to drop profile mirror during termination",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	s.audit.LogAccountAction("account_terminated", userID, "", nil)
	return nil
}

// Photo returns the raw photo blob and its MIME type.
func (s *UserService) Photo(ctx context.Context, userID string) ([]byte, string, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if len(user.Photo) == 0 {
		return nil, "", models.ErrNotFound
	}
	return user.Photo, avatar.Sniff(user.Photo).String(), nil
}

// Get loads the full user record.
func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetByID(ctx, userID)
}

func (s *UserService) refreshMirror(ctx context.Context, user *models.User) {
	if err := s.store.CacheProfile(ctx, auth.ProfileOf(user), s.profileCacheTTL); err != nil {
		s.logger.Warn("profile cache write failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}
}

func (s *UserService) refreshMirrorByID(ctx context.Context, userID string) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("profile reload for cache refresh failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	s.refreshMirror(ctx, user)
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 30 {
		return errors.New("username must be between 3 and 30 characters")
	}
	for _, r := range username {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return errors.New("username may only contain lowercase letters, digits, '.', '_' and '-'")
		}
	}
	return nil
}
