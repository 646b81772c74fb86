package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelhart/shelfmark/internal/config"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/redis/go-redis/v9"
)

// Key families. Everything in the session store carries a TTL and
// self-expires; there is no cleanup job.
const (
	refreshPrefix     = "refresh:"
	accessPrefix      = "access:"
	sessionsSetPrefix = "sessions:"
	verifyPrefix      = "verify:"
	ratePrefix        = "ratelimit:"
	pkcePrefix        = "pkce:"
	profilePrefix     = "user:"
)

// SessionRecord is the server-side state behind an opaque token.
type SessionRecord struct {
	UserID      string              `json:"user_id"`
	Kind        string              `json:"kind"` // "access" | "refresh"
	Fingerprint *models.Fingerprint `json:"fingerprint,omitempty"`
	IssuedAt    time.Time           `json:"issued_at"`
	// PairHash names the access record issued alongside a refresh
	// record so revoking the refresh token kills both.
	PairHash string `json:"pair_hash,omitempty"`
}

// VerificationRecord backs single-use verification/reset tokens.
type VerificationRecord struct {
	UserID      string              `json:"user_id"`
	Purpose     string              `json:"purpose"`
	Fingerprint *models.Fingerprint `json:"fingerprint,omitempty"`
	IssuedAt    time.Time           `json:"issued_at"`
}

// CachedProfile is the fast-read mirror of a user record. Link state
// changes in the connect flow are written here so subsequent reads skip
// the database.
type CachedProfile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Google   bool   `json:"google"`
	APIKey   string `json:"api_key,omitempty"`
}

type Store struct {
	client *redis.Client
	logger *slog.Logger
}

func New(cfg *config.RedisConfig, logger *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	logger.Info("session store connected", slog.String("addr", cfg.Addr))
	return &Store{client: client, logger: logger}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, logger *slog.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session store health check failed: %w", err)
	}
	return nil
}

// transient wraps redis transport failures so callers never mistake an
// outage for a missing key.
func transient(err error) error {
	return fmt.Errorf("%w: %v", models.ErrTransient, err)
}

// --- sessions ---

func (s *Store) PutSession(ctx context.Context, tokenHash string, rec *SessionRecord, ttl time.Duration) error {
	prefix := accessPrefix
	if rec.Kind == "refresh" {
		prefix = refreshPrefix
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, prefix+tokenHash, data, ttl).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// GetSession returns the record behind a token hash. Absent and expired
// keys are indistinguishable: both return ErrNotFound.
func (s *Store) GetSession(ctx context.Context, kind, tokenHash string) (*SessionRecord, error) {
	prefix := accessPrefix
	if kind == "refresh" {
		prefix = refreshPrefix
	}
	data, err := s.client.Get(ctx, prefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, transient(err)
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, models.ErrNotFound
	}
	return &rec, nil
}

// DeleteSessions removes session records. Idempotent.
func (s *Store) DeleteSessions(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// TrackUserSessions records session keys in the per-user set used by
// revoke-all. The set's TTL is refreshed to the longest session TTL.
func (s *Store) TrackUserSessions(ctx context.Context, userID string, ttl time.Duration, keys ...string) error {
	setKey := sessionsSetPrefix + userID
	members := make([]any, len(keys))
	for i, k := range keys {
		members[i] = k
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, setKey, members...)
	pipe.Expire(ctx, setKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return transient(err)
	}
	return nil
}

// PurgeUserSessions deletes every tracked session for the user.
func (s *Store) PurgeUserSessions(ctx context.Context, userID string) error {
	setKey := sessionsSetPrefix + userID
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return transient(err)
	}
	keys = append(keys, setKey)
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// SessionKey builds the full redis key for a token hash, for use with
// DeleteSessions and TrackUserSessions.
func SessionKey(kind, tokenHash string) string {
	if kind == "refresh" {
		return refreshPrefix + tokenHash
	}
	return accessPrefix + tokenHash
}

// --- single-use tokens ---

func (s *Store) PutVerification(ctx context.Context, tokenHash string, rec *VerificationRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	key := verifyPrefix + rec.Purpose + ":" + tokenHash
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// ConsumeVerification performs the atomic lookup-and-delete. GETDEL
// guarantees two concurrent consumers of the same token cannot both
// succeed.
func (s *Store) ConsumeVerification(ctx context.Context, purpose, tokenHash string) (*VerificationRecord, error) {
	key := verifyPrefix + purpose + ":" + tokenHash
	data, err := s.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return nil, transient(err)
	}

	var rec VerificationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, models.ErrInvalidOrExpiredToken
	}
	return &rec, nil
}

// --- PKCE verifiers ---

func (s *Store) PutPKCEVerifier(ctx context.Context, nonceHash, verifier string, ttl time.Duration) error {
	if err := s.client.Set(ctx, pkcePrefix+nonceHash, verifier, ttl).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// ConsumePKCEVerifier retrieves a verifier exactly once. A retried
// callback with the same state finds nothing and fails.
func (s *Store) ConsumePKCEVerifier(ctx context.Context, nonceHash string) (string, error) {
	verifier, err := s.client.GetDel(ctx, pkcePrefix+nonceHash).Result()
	if errors.Is(err, redis.Nil) {
		return "", models.ErrInvalidOrExpiredToken
	}
	if err != nil {
		return "", transient(err)
	}
	return verifier, nil
}

// --- rate-limit counters ---

// IncrWindow bumps a fixed-window counter, setting the window TTL on
// first increment only. Returns the new count and the time left in the
// window.
func (s *Store) IncrWindow(ctx context.Context, fingerprint string, window time.Duration) (int64, time.Duration, error) {
	key := ratePrefix + fingerprint

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, transient(err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

// WindowCount reads a counter without incrementing it.
func (s *Store) WindowCount(ctx context.Context, fingerprint string) (int64, time.Duration, error) {
	key := ratePrefix + fingerprint

	pipe := s.client.TxPipeline()
	get := pipe.Get(ctx, key)
	ttl := pipe.TTL(ctx, key)
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, 0, transient(err)
	}

	count, _ := get.Int64()
	remaining := ttl.Val()
	if remaining < 0 {
		remaining = 0
	}
	return count, remaining, nil
}

// --- profile cache ---

func (s *Store) CacheProfile(ctx context.Context, profile *CachedProfile, ttl time.Duration) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, profilePrefix+profile.ID, data, ttl).Err(); err != nil {
		return transient(err)
	}
	return nil
}

// Profile reads the cached user mirror. Cache misses return ErrNotFound;
// callers fall back to the database.
func (s *Store) Profile(ctx context.Context, userID string) (*CachedProfile, error) {
	data, err := s.client.Get(ctx, profilePrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, transient(err)
	}

	var profile CachedProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, models.ErrNotFound
	}
	return &profile, nil
}

func (s *Store) DropProfile(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, profilePrefix+userID).Err(); err != nil {
		return transient(err)
	}
	return nil
}
