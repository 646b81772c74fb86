package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRateLimiter(t *testing.T, maxAttempts int, window time.Duration) (*RateLimitService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewWithClient(client, testLogger())
	return NewRateLimitService(s, RateLimitConfig{MaxAttempts: maxAttempts, Window: window}, testLogger()), mr
}

func TestRateLimit_AllowsUnderThreshold(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 5, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"))
		require.NoError(t, rl.RecordFailure(ctx, "10.0.0.1", "ada@example.com"))
	}
	assert.NoError(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"))
}

func TestRateLimit_BlocksAtThreshold(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 5, 15*time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.RecordFailure(ctx, "10.0.0.1", "ada@example.com"))
	}

	err := rl.Check(ctx, "10.0.0.1", "ada@example.com")
	require.ErrorIs(t, err, models.ErrRateLimited)

	var rle *models.RateLimitedError
	require.ErrorAs(t, err, &rle)
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rle.RetryAfter, 15*time.Minute)
}

func TestRateLimit_WindowExpires(t *testing.T) {
	rl, mr := newTestRateLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.RecordFailure(ctx, "10.0.0.1", "ada@example.com"))
	}
	require.ErrorIs(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"), models.ErrRateLimited)

	mr.FastForward(61 * time.Second)
	assert.NoError(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"))
}

func TestRateLimit_KeyedPerIPAndIdentity(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.RecordFailure(ctx, "10.0.0.1", "ada@example.com"))
	}
	require.ErrorIs(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"), models.ErrRateLimited)

	// different IP, same account
	assert.NoError(t, rl.Check(ctx, "10.0.0.2", "ada@example.com"))
	// same IP, different account
	assert.NoError(t, rl.Check(ctx, "10.0.0.1", "other@example.com"))
}

func TestRateLimit_IdentityCaseInsensitive(t *testing.T) {
	rl, _ := newTestRateLimiter(t, 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, rl.RecordFailure(ctx, "10.0.0.1", "Ada@Example.com"))
	}
	assert.ErrorIs(t, rl.Check(ctx, "10.0.0.1", "ada@example.com"), models.ErrRateLimited)
}

func TestRateLimit_FailsOpenOnStoreOutage(t *testing.T) {
	rl, mr := newTestRateLimiter(t, 3, time.Minute)
	mr.Close()

	assert.NoError(t, rl.Check(context.Background(), "10.0.0.1", "ada@example.com"))
}
