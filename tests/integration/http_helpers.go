package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/config"
	"github.com/avelhart/shelfmark/internal/database"
	"github.com/avelhart/shelfmark/internal/handlers"
	"github.com/avelhart/shelfmark/internal/repositories"
	"github.com/avelhart/shelfmark/internal/routes"
	"github.com/avelhart/shelfmark/internal/services"
	"github.com/avelhart/shelfmark/internal/store"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
)

// SentEmail is a captured outbound message.
type SentEmail struct {
	To      string
	Purpose string // "verification" or "reset"
	Token   string
}

// MockEmailService captures emails for test assertions.
type MockEmailService struct {
	mu   sync.Mutex
	sent []SentEmail
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.record(SentEmail{To: email, Purpose: "verification", Token: token})
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	m.record(SentEmail{To: email, Purpose: "reset", Token: token})
	return nil
}

func (m *MockEmailService) record(e SentEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
}

// LastEmail returns the most recent message, or nil.
func (m *MockEmailService) LastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	e := m.sent[len(m.sent)-1]
	return &e
}

// Count returns how many messages were sent.
func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// TestServer wires the full HTTP stack against a real database and an
// in-process Redis.
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Store  *store.Store
	Redis  *miniredis.Miniredis
	Email  *MockEmailService
	Config *config.Config
}

// NewTestServer builds the router the way main does, with SES swapped
// for a capture mock and Redis swapped for miniredis.
func NewTestServer(t *testing.T, db *database.DB, userRepo *repositories.UserRepository) *TestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			AccessTokenTTL:       15 * time.Minute,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			VerificationTokenTTL: 24 * time.Hour,
			PKCETTL:              5 * time.Minute,
			ProfileCacheTTL:      15 * time.Minute,
			RateLimitMaxAttempts: 5,
			RateLimitWindow:      5 * time.Minute,
		},
		Server: config.ServerConfig{
			Env:          "test",
			ClientOrigin: "http://localhost:5173",
		},
		Google: config.GoogleConfig{
			ClientID:     "test-client-id",
			ClientSecret: "test-client-secret",
			RedirectURL:  "http://localhost:8080/auth/google/callback",
		},
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionStore := store.NewWithClient(client, logger)

	auditLogger := pkglogger.NewAuditLogger(logger)
	emailService := &MockEmailService{}

	tokenService := auth.NewTokenService(sessionStore, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, logger)
	apiKeys := auth.NewAPIKeyManager()

	verificationService := auth.NewVerificationService(
		sessionStore, userRepo, tokenService, emailService,
		cfg.Auth.VerificationTokenTTL, cfg.Auth.ProfileCacheTTL, logger, auditLogger,
	)

	rateLimiter := services.NewRateLimitService(sessionStore, services.RateLimitConfig{
		MaxAttempts: cfg.Auth.RateLimitMaxAttempts,
		Window:      cfg.Auth.RateLimitWindow,
	}, logger)

	localStrategy := auth.NewLocalStrategy(userRepo, rateLimiter, verificationService, logger, auditLogger)
	googleStrategy := auth.NewGoogleStrategy(
		&cfg.Google, userRepo, sessionStore, tokenService, verificationService,
		cfg.Auth.PKCETTL, cfg.Auth.ProfileCacheTTL, logger, auditLogger,
	)

	authService := services.NewAuthService(userRepo, verificationService, logger, auditLogger)
	userService := services.NewUserService(userRepo, tokenService, apiKeys, sessionStore, cfg.Auth.ProfileCacheTTL, logger, auditLogger)

	guard := auth.NewGuard(tokenService, userRepo, sessionStore, apiKeys, cfg.Auth.ProfileCacheTTL, logger)

	cookieConfig := auth.CookieConfig{}
	ipConfig := &pkghttp.IPConfig{}

	authHandler := handlers.NewAuthHandler(
		authService, localStrategy, tokenService, verificationService,
		cookieConfig, cfg.Auth.RefreshTokenTTL, ipConfig,
	)
	googleHandler := handlers.NewGoogleHandler(
		googleStrategy, cookieConfig, cfg.Auth.RefreshTokenTTL, cfg.Auth.PKCETTL,
		cfg.Server.ClientOrigin, logger,
	)
	userHandler := handlers.NewUserHandler(userService)

	healthCheck := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	routes.RegisterRoutes(router, authHandler, googleHandler, userHandler, guard, healthCheck)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server: server,
		DB:     db,
		Store:  sessionStore,
		Redis:  mr,
		Email:  emailService,
		Config: cfg,
	}
}

// Response bundles what assertions usually need.
type Response struct {
	Status  int
	Body    map[string]any
	Raw     []byte
	Cookies []*http.Cookie
}

// Do sends a JSON request. Cookies and headers are optional.
func (ts *TestServer) Do(t *testing.T, method, path string, body any, opts ...RequestOption) *Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	// no redirect following; OAuth endpoints answer with 302
	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}

	parsed := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}

	return &Response{
		Status:  resp.StatusCode,
		Body:    parsed,
		Raw:     raw,
		Cookies: resp.Cookies(),
	}
}

// RequestOption mutates an outbound request.
type RequestOption func(*http.Request)

// WithBearer sets the access token header.
func WithBearer(token string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// WithAPIKey sets the programmatic access header.
func WithAPIKey(key string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("X-Api-Key", key)
	}
}

// WithCookie attaches a cookie to the request.
func WithCookie(c *http.Cookie) RequestOption {
	return func(r *http.Request) {
		r.AddCookie(c)
	}
}

// FindCookie returns the named cookie from the response, or nil.
func (r *Response) FindCookie(name string) *http.Cookie {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AccessToken pulls the access token out of a session response.
func (r *Response) AccessToken(t *testing.T) string {
	t.Helper()
	token, ok := r.Body["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("response has no access_token: %s", string(r.Raw))
	}
	return token
}

func requireStatus(t *testing.T, r *Response, want int) {
	t.Helper()
	if r.Status != want {
		t.Fatalf("expected status %d, got %d: %s", want, r.Status, string(r.Raw))
	}
}
