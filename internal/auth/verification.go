package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkgauth "github.com/avelhart/shelfmark/pkg/auth"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
)

// Verification token purposes.
const (
	PurposeVerifyEmail   = "verify-email"
	PurposeResetPassword = "reset-password"
)

// VerificationService issues and consumes single-use tokens, and owns
// EstablishSession, the one code path through which every successful
// authentication (local or federated) becomes a live session.
type VerificationService struct {
	store           *store.Store
	users           UserStore
	tokens          *TokenService
	mailer          EmailSender
	tokenTTL        time.Duration
	profileCacheTTL time.Duration
	logger          *slog.Logger
	audit           *pkglogger.AuditLogger
}

func NewVerificationService(
	sessionStore *store.Store,
	users UserStore,
	tokens *TokenService,
	mailer EmailSender,
	tokenTTL, profileCacheTTL time.Duration,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *VerificationService {
	return &VerificationService{
		store:           sessionStore,
		users:           users,
		tokens:          tokens,
		mailer:          mailer,
		tokenTTL:        tokenTTL,
		profileCacheTTL: profileCacheTTL,
		logger:          logger,
		audit:           audit,
	}
}

// EstablishSession converts "credentials proven" into a session. Both
// strategies delegate here so local and federated logins have identical
// session side effects: token issuance plus the profile cache mirror.
func (vs *VerificationService) EstablishSession(ctx context.Context, user *models.User, fp *models.Fingerprint) (*TokenPair, error) {
	pair, err := vs.tokens.Issue(ctx, user.ID, fp)
	if err != nil {
		return nil, err
	}

	if err := vs.store.CacheProfile(ctx, ProfileOf(user), vs.profileCacheTTL); err != nil {
		// the mirror is an optimization; a write failure must not
		// invalidate a correctly issued session
		vs.logger.Warn("profile cache write failed",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	return pair, nil
}

// ProfileOf builds the cached mirror of a user record.
func ProfileOf(user *models.User) *store.CachedProfile {
	profile := &store.CachedProfile{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
		Verified: user.Verified,
		Google:   user.HasGoogle(),
	}
	if user.APIKeyHash != nil {
		profile.APIKey = *user.APIKeyHash
	}
	return profile
}

// GenerateToken mints a single-use, purpose-tagged opaque token.
func (vs *VerificationService) GenerateToken(ctx context.Context, purpose, userID string, fp *models.Fingerprint) (string, error) {
	token, hash, err := newOpaqueToken()
	if err != nil {
		return "", err
	}

	rec := &store.VerificationRecord{
		UserID:      userID,
		Purpose:     purpose,
		Fingerprint: fp,
		IssuedAt:    time.Now(),
	}
	if err := vs.store.PutVerification(ctx, hash, rec, vs.tokenTTL); err != nil {
		return "", err
	}

	return token, nil
}

// Consume atomically invalidates a token and returns the bound user id.
// A second consumption attempt fails even within the TTL window.
func (vs *VerificationService) Consume(ctx context.Context, token, purpose string) (string, error) {
	if token == "" {
		return "", models.ErrInvalidOrExpiredToken
	}
	rec, err := vs.store.ConsumeVerification(ctx, purpose, HashToken(token))
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// SendVerificationEmail issues a verify-email token and mails it.
func (vs *VerificationService) SendVerificationEmail(ctx context.Context, user *models.User) error {
	token, err := vs.GenerateToken(ctx, PurposeVerifyEmail, user.ID, nil)
	if err != nil {
		return err
	}
	if err := vs.mailer.SendVerificationEmail(ctx, user.Email, token); err != nil {
		vs.logger.Error("verification email delivery failed",
			slog.String("user_id", user.ID),
			slog.String("email", pkglogger.SanitizedEmail(user.Email)),
			slog.Any("error", err))
		return err
	}
	return nil
}

// VerifyEmail consumes a verify-email token and flips the user's
// verified flag. No new session is created.
func (vs *VerificationService) VerifyEmail(ctx context.Context, token string) (string, error) {
	userID, err := vs.Consume(ctx, token, PurposeVerifyEmail)
	if err != nil {
		return "", err
	}

	if err := vs.users.SetVerified(ctx, userID, true); err != nil {
		return "", err
	}

	if user, err := vs.users.GetByID(ctx, userID); err == nil {
		if err := vs.store.CacheProfile(ctx, ProfileOf(user), vs.profileCacheTTL); err != nil {
			vs.logger.Warn("profile cache write failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}

	vs.audit.LogAccountAction("email_verified", userID, "", nil)
	return userID, nil
}

// SendPasswordResetEmail issues a reset-password token for the account
// behind the identifier, if one exists. The caller responds identically
// either way to resist enumeration.
func (vs *VerificationService) SendPasswordResetEmail(ctx context.Context, identifier string) error {
	user, err := vs.users.GetByEmailOrUsername(ctx, identifier)
	if err != nil {
		// swallow not-found: the response must not reveal whether the
		// account exists
		return nil
	}

	token, err := vs.GenerateToken(ctx, PurposeResetPassword, user.ID, nil)
	if err != nil {
		return err
	}
	return vs.mailer.SendPasswordResetEmail(ctx, user.Email, token)
}

// ResetPassword consumes a reset token, persists the new password and
// revokes every existing session for the user.
func (vs *VerificationService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return &models.ValidationError{Fields: map[string]string{"pass": err.Error()}}
	}

	userID, err := vs.Consume(ctx, token, PurposeResetPassword)
	if err != nil {
		return err
	}

	hash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := vs.users.SetPassword(ctx, userID, hash); err != nil {
		return err
	}

	if err := vs.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}

	vs.audit.LogAccountAction("password_reset", userID, "", nil)
	return nil
}
