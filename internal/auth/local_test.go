package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkgauth "github.com/avelhart/shelfmark/pkg/auth"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocalStrategy(t *testing.T, users UserStore, limiter RateLimiter) *LocalStrategy {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewWithClient(client, testLogger())

	tokens := NewTokenService(s, 15*time.Minute, 7*24*time.Hour, testLogger())
	audit := pkglogger.NewAuditLogger(testLogger())
	sessions := NewVerificationService(s, users, tokens, &MockEmailSender{}, 15*time.Minute, 24*time.Hour, testLogger(), audit)
	return NewLocalStrategy(users, limiter, sessions, testLogger(), audit)
}

func localUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := pkgauth.HashPassword(password)
	require.NoError(t, err)
	return &models.User{ID: "user-1", Name: "Ada", Username: "ada", Email: "ada@example.com", PasswordHash: &hash}
}

func TestLocalStrategy_Success(t *testing.T) {
	user := localUser(t, "Sup3rSecret")
	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			assert.Equal(t, "ada@example.com", identifier)
			return user, nil
		},
	}
	s := newTestLocalStrategy(t, users, &MockRateLimiter{})

	outcome, err := s.Authenticate(context.Background(), Credentials{
		Kind:            KindLocal,
		EmailOrUsername: "ada@example.com",
		Password:        "Sup3rSecret",
	})
	require.NoError(t, err)
	require.NotNil(t, outcome.Session)
	assert.Equal(t, "user-1", outcome.User.ID)
	assert.NotEmpty(t, outcome.Session.AccessToken)
}

func TestLocalStrategy_FailureModesIndistinguishable(t *testing.T) {
	user := localUser(t, "Sup3rSecret")
	googleID := "g-1"
	googleOnly := &models.User{ID: "user-2", Email: "g@example.com", GoogleID: &googleID}

	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			switch identifier {
			case "ada@example.com":
				return user, nil
			case "g@example.com":
				return googleOnly, nil
			}
			return nil, models.ErrNotFound
		},
	}
	s := newTestLocalStrategy(t, users, &MockRateLimiter{})

	cases := []struct {
		name       string
		identifier string
		password   string
	}{
		{"unknown account", "ghost@example.com", "Sup3rSecret"},
		{"wrong password", "ada@example.com", "WrongPass123"},
		{"google-only account", "g@example.com", "Sup3rSecret"},
		{"empty password", "ada@example.com", ""},
		{"empty identifier", "", "Sup3rSecret"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Authenticate(context.Background(), Credentials{
				Kind:            KindLocal,
				EmailOrUsername: tc.identifier,
				Password:        tc.password,
			})
			assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		})
	}
}

func TestLocalStrategy_RateLimited(t *testing.T) {
	var lookedUp bool
	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			lookedUp = true
			return nil, models.ErrNotFound
		},
	}
	limiter := &MockRateLimiter{
		CheckFunc: func(ctx context.Context, clientIP, identity string) error {
			return &models.RateLimitedError{RetryAfter: 5 * time.Minute}
		},
	}
	s := newTestLocalStrategy(t, users, limiter)

	_, err := s.Authenticate(context.Background(), Credentials{
		Kind:            KindLocal,
		EmailOrUsername: "ada@example.com",
		Password:        "Sup3rSecret",
		ClientIP:        "10.0.0.1",
	})
	assert.ErrorIs(t, err, models.ErrRateLimited)
	assert.False(t, lookedUp, "rate limit must short-circuit before any store access")
}

func TestLocalStrategy_FailureRecordsAttempt(t *testing.T) {
	var recorded int
	limiter := &MockRateLimiter{
		RecordFailureFunc: func(ctx context.Context, clientIP, identity string) error {
			recorded++
			assert.Equal(t, "10.0.0.1", clientIP)
			assert.Equal(t, "ada@example.com", identity)
			return nil
		},
	}
	user := localUser(t, "Sup3rSecret")
	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	s := newTestLocalStrategy(t, users, limiter)

	_, err := s.Authenticate(context.Background(), Credentials{
		Kind:            KindLocal,
		EmailOrUsername: "ada@example.com",
		Password:        "WrongPass123",
		ClientIP:        "10.0.0.1",
	})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 1, recorded)
}

func TestLocalStrategy_SuccessDoesNotRecordFailure(t *testing.T) {
	var recorded int
	limiter := &MockRateLimiter{
		RecordFailureFunc: func(ctx context.Context, clientIP, identity string) error {
			recorded++
			return nil
		},
	}
	user := localUser(t, "Sup3rSecret")
	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return user, nil
		},
	}
	s := newTestLocalStrategy(t, users, limiter)

	_, err := s.Authenticate(context.Background(), Credentials{
		Kind:            KindLocal,
		EmailOrUsername: "ada@example.com",
		Password:        "Sup3rSecret",
	})
	require.NoError(t, err)
	assert.Zero(t, recorded)
}

func TestLocalStrategy_StoreOutageIsTransient(t *testing.T) {
	users := &MockUserStore{
		GetByEmailOrUsernameFunc: func(ctx context.Context, identifier string) (*models.User, error) {
			return nil, models.ErrInternalServer
		},
	}
	s := newTestLocalStrategy(t, users, &MockRateLimiter{})

	_, err := s.Authenticate(context.Background(), Credentials{
		Kind:            KindLocal,
		EmailOrUsername: "ada@example.com",
		Password:        "Sup3rSecret",
	})
	assert.ErrorIs(t, err, models.ErrTransient)
	assert.NotErrorIs(t, err, models.ErrInvalidCredentials)
}
