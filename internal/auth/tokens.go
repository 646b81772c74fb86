package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
)

// TokenPair is the credential set returned by every successful
// authentication, regardless of strategy.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService mints, validates and revokes opaque session tokens.
// Tokens carry no claims; validity is decided solely by a live session
// store record, keyed by the token's SHA-256.
type TokenService struct {
	store      *store.Store
	accessTTL  time.Duration
	refreshTTL time.Duration
	logger     *slog.Logger
}

func NewTokenService(sessionStore *store.Store, accessTTL, refreshTTL time.Duration, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:      sessionStore,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// newOpaqueToken returns a 256-bit random url-safe token and its hash.
func newOpaqueToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashToken(token), nil
}

// HashToken derives the store key for an opaque token. Only hashes are
// persisted, so a leaked store dump yields no usable credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Issue creates a new access/refresh pair for the user and records both
// in the session store. The fingerprint is stored as session metadata.
func (ts *TokenService) Issue(ctx context.Context, userID string, fp *models.Fingerprint) (*TokenPair, error) {
	accessToken, accessHash, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}
	refreshToken, refreshHash, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if err := ts.store.PutSession(ctx, accessHash, &store.SessionRecord{
		UserID:      userID,
		Kind:        "access",
		Fingerprint: fp,
		IssuedAt:    now,
	}, ts.accessTTL); err != nil {
		return nil, err
	}

	if err := ts.store.PutSession(ctx, refreshHash, &store.SessionRecord{
		UserID:      userID,
		Kind:        "refresh",
		Fingerprint: fp,
		IssuedAt:    now,
		PairHash:    accessHash,
	}, ts.refreshTTL); err != nil {
		return nil, err
	}

	if err := ts.store.TrackUserSessions(ctx, userID, ts.refreshTTL,
		store.SessionKey("access", accessHash),
		store.SessionKey("refresh", refreshHash),
	); err != nil {
		return nil, err
	}

	ts.logger.Info("session issued", slog.String("user_id", userID))
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Validate resolves an access token to its owning user id. Absent and
// expired tokens fail identically with ErrUnauthenticated; a store
// outage surfaces as ErrTransient, never as unauthenticated.
func (ts *TokenService) Validate(ctx context.Context, accessToken string) (string, error) {
	if accessToken == "" {
		return "", models.ErrUnauthenticated
	}

	rec, err := ts.store.GetSession(ctx, "access", HashToken(accessToken))
	if errors.Is(err, models.ErrNotFound) {
		return "", models.ErrUnauthenticated
	}
	if err != nil {
		return "", err
	}
	return rec.UserID, nil
}

// ValidateRefresh resolves a refresh token to its session record.
func (ts *TokenService) ValidateRefresh(ctx context.Context, refreshToken string) (*store.SessionRecord, error) {
	if refreshToken == "" {
		return nil, models.ErrUnauthenticated
	}

	rec, err := ts.store.GetSession(ctx, "refresh", HashToken(refreshToken))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Rotate exchanges a valid refresh token for a fresh pair, revoking the
// old one.
func (ts *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, string, error) {
	rec, err := ts.ValidateRefresh(ctx, refreshToken)
	if err != nil {
		return nil, "", err
	}

	if err := ts.Revoke(ctx, refreshToken); err != nil {
		return nil, "", err
	}

	pair, err := ts.Issue(ctx, rec.UserID, rec.Fingerprint)
	if err != nil {
		return nil, "", err
	}
	return pair, rec.UserID, nil
}

// Revoke deletes the refresh session and its paired access session.
// Idempotent: revoking an unknown token is not an error.
func (ts *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	refreshHash := HashToken(refreshToken)
	keys := []string{store.SessionKey("refresh", refreshHash)}

	rec, err := ts.store.GetSession(ctx, "refresh", refreshHash)
	if err == nil && rec.PairHash != "" {
		keys = append(keys, store.SessionKey("access", rec.PairHash))
	} else if err != nil && !errors.Is(err, models.ErrNotFound) {
		return err
	}

	return ts.store.DeleteSessions(ctx, keys...)
}

// RevokeAll deletes every session for the user. Used on password change
// and account termination.
func (ts *TokenService) RevokeAll(ctx context.Context, userID string) error {
	if err := ts.store.PurgeUserSessions(ctx, userID); err != nil {
		return err
	}
	ts.logger.Info("all sessions revoked", slog.String("user_id", userID))
	return nil
}
