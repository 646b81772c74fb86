package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/avatar"
	"github.com/avelhart/shelfmark/internal/models"
	pkgauth "github.com/avelhart/shelfmark/pkg/auth"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
)

// AuthService owns local registration. Login and the federated flows
// live in the strategies; registration is the one credential-creating
// path that stands outside them.
type AuthService struct {
	users    auth.UserStore
	sessions *auth.VerificationService
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewAuthService(users auth.UserStore, sessions *auth.VerificationService, logger *slog.Logger, audit *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		logger:   logger,
		audit:    audit,
	}
}

// Register creates a local account: bcrypt-hashed password, generated
// avatar, verified=false until the emailed token is consumed. A session
// is established immediately; verification gates nothing but the badge.
func (s *AuthService) Register(ctx context.Context, name, username, email, password string, fp *models.Fingerprint, clientIP string) (*auth.Outcome, error) {
	fields := map[string]string{}

	name = strings.TrimSpace(name)
	if name == "" {
		fields["name"] = "name must not be empty"
	}
	username = strings.TrimSpace(strings.ToLower(username))
	if err := validateUsername(username); err != nil {
		fields["username"] = err.Error()
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		fields["email"] = "must be a valid email address"
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		fields["pass"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, &models.ValidationError{Fields: fields}
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &models.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Photo:        avatar.Generate(name),
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		return nil, err
	}

	// delivery failure must not fail the registration; the user can
	// request a resend
	if err := s.sessions.SendVerificationEmail(ctx, user); err != nil {
		s.logger.Warn("verification email not sent at registration",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	pair, err := s.sessions.EstablishSession(ctx, user, fp)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register_success",
		Strategy:  "local",
		UserID:    user.ID,
		IPAddress: clientIP,
		Success:   true,
	})

	return &auth.Outcome{User: user, Session: pair}, nil
}

// ResendVerification issues a fresh verify-email token for the account
// behind the email, staying silent when none exists or it is already
// verified.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmailOrUsername(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil
	}
	if user.Verified {
		return nil
	}
	return s.sessions.SendVerificationEmail(ctx, user)
}
