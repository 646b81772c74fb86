package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.PKCETTL)
	assert.Equal(t, 5, cfg.Auth.RateLimitMaxAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.RateLimitWindow)
	assert.Equal(t, "http://localhost:8080/auth/google/callback", cfg.Google.RedirectURL)
	assert.Contains(t, cfg.Server.AllowedOrigins, cfg.Server.ClientOrigin)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingGoogleCredentials(t *testing.T) {
	t.Setenv("DB_PASSWORD", "testpass")
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresRealMailer(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("EMAIL_PROVIDER", "log")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("RATE_LIMIT_MAX_ATTEMPTS", "10")
	t.Setenv("CLIENT_ORIGIN", "https://app.example.com/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 10, cfg.Auth.RateLimitMaxAttempts)
	// trailing slash is stripped so the popup postMessage origin is exact
	assert.Equal(t, "https://app.example.com", cfg.Server.ClientOrigin)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Name: "shelfmark", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=shelfmark sslmode=disable", cfg.DSN())
}
