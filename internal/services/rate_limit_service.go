package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
)

// RateLimitConfig holds the fixed-window parameters for credential
// attempts.
type RateLimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// RateLimitService enforces a per-(client IP, identity) fixed window on
// failed credential validation. Counters live in Redis and expire on
// their own; nothing is ever cleaned up out of band.
type RateLimitService struct {
	store  *store.Store
	config RateLimitConfig
	logger *slog.Logger
}

func NewRateLimitService(sessionStore *store.Store, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:  sessionStore,
		config: config,
		logger: logger,
	}
}

// fingerprint keys the counter on the IP and the lowercased identity
// together, so one attacker hammering many accounts and many attackers
// hammering one account count separately.
func fingerprint(clientIP, identity string) string {
	sum := sha256.Sum256([]byte(clientIP + "\x00" + strings.ToLower(identity)))
	return hex.EncodeToString(sum[:])
}

// Check reports whether another attempt is allowed right now. A Redis
// outage fails open: rate limiting is an abuse brake, not an access
// control, and an outage must not lock every user out.
func (s *RateLimitService) Check(ctx context.Context, clientIP, identity string) error {
	count, remaining, err := s.store.WindowCount(ctx, fingerprint(clientIP, identity))
	if err != nil {
		s.logger.Error("rate limit check failed, allowing attempt", slog.Any("error", err))
		return nil
	}

	if count >= int64(s.config.MaxAttempts) {
		s.logger.Warn("credential attempts rate limited",
			slog.String("ip_address", clientIP),
			slog.Int64("attempts", count),
			slog.Duration("retry_after", remaining))
		return &models.RateLimitedError{RetryAfter: remaining}
	}
	return nil
}

// RecordFailure bumps the counter after a failed attempt. Successful
// logins are never recorded, so the window only fills with failures.
func (s *RateLimitService) RecordFailure(ctx context.Context, clientIP, identity string) error {
	_, _, err := s.store.IncrWindow(ctx, fingerprint(clientIP, identity), s.config.Window)
	if err != nil {
		s.logger.Error("failed to record credential attempt", slog.Any("error", err))
		return err
	}
	return nil
}
