package auth

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

func newTestTokenService(t *testing.T) (*TokenService, *store.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := store.NewWithClient(client, testLogger())
	return NewTokenService(s, 15*time.Minute, 7*24*time.Hour, testLogger()), s, mr
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	userID, err := ts.Validate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	rec, err := ts.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.UserID)
}

func TestTokenService_ValidateRejectsGarbage(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	_, err := ts.Validate(ctx, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = ts.Validate(ctx, "not-a-real-token")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestTokenService_RefreshNotUsableAsAccess(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	_, err = ts.Validate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestTokenService_AccessExpiry(t *testing.T) {
	ts, _, mr := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	mr.FastForward(16 * time.Minute)

	_, err = ts.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	// the refresh token outlives the access token
	_, err = ts.ValidateRefresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenService_RotateInvalidatesOldPair(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	old, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	fresh, userID, err := ts.Rotate(ctx, old.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = ts.ValidateRefresh(ctx, old.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = ts.Validate(ctx, old.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	got, err := ts.Validate(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got)
}

func TestTokenService_RotateReplayFails(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	_, _, err = ts.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)

	_, _, err = ts.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestTokenService_RevokeKillsPairedAccess(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	require.NoError(t, ts.Revoke(ctx, pair.RefreshToken))

	_, err = ts.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
	_, err = ts.ValidateRefresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestTokenService_RevokeIdempotent(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	assert.NoError(t, ts.Revoke(ctx, "never-issued"))
	assert.NoError(t, ts.Revoke(ctx, ""))
}

func TestTokenService_RevokeAll(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	first, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)
	second, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)
	other, err := ts.Issue(ctx, "user-2", nil)
	require.NoError(t, err)

	require.NoError(t, ts.RevokeAll(ctx, "user-1"))

	for _, token := range []string{first.AccessToken, second.AccessToken} {
		_, err := ts.Validate(ctx, token)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	}
	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		_, err := ts.ValidateRefresh(ctx, token)
		assert.ErrorIs(t, err, models.ErrUnauthenticated)
	}

	_, err = ts.Validate(ctx, other.AccessToken)
	assert.NoError(t, err)
}

func TestTokenService_FingerprintStoredWithSession(t *testing.T) {
	ts, _, _ := newTestTokenService(t)
	ctx := context.Background()

	fp := &models.Fingerprint{Timezone: "Europe/Vilnius", ScreenRes: "1920x1080"}
	pair, err := ts.Issue(ctx, "user-1", fp)
	require.NoError(t, err)

	rec, err := ts.ValidateRefresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, rec.Fingerprint)
	assert.Equal(t, "Europe/Vilnius", rec.Fingerprint.Timezone)
}

func TestTokenService_StoreOutageIsTransient(t *testing.T) {
	ts, _, mr := newTestTokenService(t)
	ctx := context.Background()

	pair, err := ts.Issue(ctx, "user-1", nil)
	require.NoError(t, err)

	mr.Close()

	_, err = ts.Validate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, models.ErrTransient)
	assert.NotErrorIs(t, err, models.ErrUnauthenticated)
}
