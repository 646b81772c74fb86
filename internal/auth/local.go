package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/avelhart/shelfmark/internal/models"
	pkgauth "github.com/avelhart/shelfmark/pkg/auth"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
)

// RateLimiter guards credential validation attempts.
type RateLimiter interface {
	Check(ctx context.Context, clientIP, identity string) error
	RecordFailure(ctx context.Context, clientIP, identity string) error
}

// LocalStrategy validates an email-or-username plus password against
// the identity store.
type LocalStrategy struct {
	users    UserStore
	limiter  RateLimiter
	sessions *VerificationService
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewLocalStrategy(users UserStore, limiter RateLimiter, sessions *VerificationService, logger *slog.Logger, audit *pkglogger.AuditLogger) *LocalStrategy {
	return &LocalStrategy{
		users:    users,
		limiter:  limiter,
		sessions: sessions,
		logger:   logger,
		audit:    audit,
	}
}

// Authenticate implements Strategy. Missing users, accounts without a
// local credential and wrong passwords all fail with the same
// ErrInvalidCredentials so callers cannot enumerate accounts; the
// failure paths run a burn comparison to stay on bcrypt's cost curve.
func (s *LocalStrategy) Authenticate(ctx context.Context, creds Credentials) (*Outcome, error) {
	identifier := strings.TrimSpace(creds.EmailOrUsername)
	if identifier == "" || creds.Password == "" {
		return nil, models.ErrInvalidCredentials
	}

	if err := s.limiter.Check(ctx, creds.ClientIP, identifier); err != nil {
		s.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Strategy:      "local",
			IPAddress:     creds.ClientIP,
			FailureReason: "rate_limited",
		})
		return nil, err
	}

	user, err := s.users.GetByEmailOrUsername(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkgauth.BurnCompare(creds.Password)
			return nil, s.fail(ctx, creds, "", "invalid_credentials")
		}
		s.logger.Error("identity store lookup failed", slog.Any("error", err))
		return nil, models.ErrTransient
	}

	if !user.HasPassword() {
		// Google-only account; indistinguishable from a bad password
		pkgauth.BurnCompare(creds.Password)
		return nil, s.fail(ctx, creds, user.ID, "no_local_credential")
	}

	if err := pkgauth.ComparePassword(*user.PasswordHash, creds.Password); err != nil {
		return nil, s.fail(ctx, creds, user.ID, "invalid_credentials")
	}

	pair, err := s.sessions.EstablishSession(ctx, user, creds.Fingerprint)
	if err != nil {
		return nil, err
	}

	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Strategy:  "local",
		UserID:    user.ID,
		IPAddress: creds.ClientIP,
		Success:   true,
	})

	return &Outcome{User: user, Session: pair}, nil
}

// fail records the attempt against the rate limiter and returns the
// single generic credential error.
func (s *LocalStrategy) fail(ctx context.Context, creds Credentials, userID, reason string) error {
	if err := s.limiter.RecordFailure(ctx, creds.ClientIP, strings.TrimSpace(creds.EmailOrUsername)); err != nil {
		s.logger.Warn("failed to record login attempt", slog.Any("error", err))
	}
	s.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		Strategy:      "local",
		UserID:        userID,
		IPAddress:     creds.ClientIP,
		FailureReason: reason,
	})
	return models.ErrInvalidCredentials
}
