package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for the authenticated principal in context
	UserContextKey contextKey = "user"
)

// Principal is what the guard attaches to the request: the resolved
// profile plus the scheme that authenticated it.
type Principal struct {
	Profile *store.CachedProfile
	Scheme  string // "bearer" or "api_key"
}

// Guard authenticates requests. A bearer token maps to a live access
// session; X-Api-Key maps to a stored key hash. Session-store outages
// surface as 503, never as 401, so callers can tell "retry" from
// "re-login".
type Guard struct {
	tokens          *TokenService
	users           UserStore
	store           *store.Store
	keys            *APIKeyManager
	profileCacheTTL time.Duration
	logger          *slog.Logger
}

func NewGuard(tokens *TokenService, users UserStore, sessionStore *store.Store, keys *APIKeyManager, profileCacheTTL time.Duration, logger *slog.Logger) *Guard {
	return &Guard{
		tokens:          tokens,
		users:           users,
		store:           sessionStore,
		keys:            keys,
		profileCacheTTL: profileCacheTTL,
		logger:          logger,
	}
}

// RequireSession admits only bearer-token requests.
func (g *Guard) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			pkghttp.WriteUnauthenticated(w)
			return
		}

		profile, err := g.resolveBearer(r.Context(), token)
		if err != nil {
			g.writeGuardError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &Principal{Profile: profile, Scheme: "bearer"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAPIKey admits only X-Api-Key requests. Keys never expire and
// never touch the session store.
func (g *Guard) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Api-Key")
		if key == "" {
			pkghttp.WriteUnauthenticated(w)
			return
		}

		profile, err := g.resolveAPIKey(r.Context(), key)
		if err != nil {
			g.writeGuardError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &Principal{Profile: profile, Scheme: "api_key"})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAny accepts either scheme, preferring the bearer token when
// both are present.
func (g *Guard) RequireAny(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			profile *store.CachedProfile
			scheme  string
			err     error
		)

		if token, ok := bearerToken(r); ok {
			profile, err = g.resolveBearer(r.Context(), token)
			scheme = "bearer"
		} else if key := r.Header.Get("X-Api-Key"); key != "" {
			profile, err = g.resolveAPIKey(r.Context(), key)
			scheme = "api_key"
		} else {
			pkghttp.WriteUnauthenticated(w)
			return
		}

		if err != nil {
			g.writeGuardError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, &Principal{Profile: profile, Scheme: scheme})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) resolveBearer(ctx context.Context, token string) (*store.CachedProfile, error) {
	userID, err := g.tokens.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	return g.loadProfile(ctx, userID)
}

func (g *Guard) resolveAPIKey(ctx context.Context, key string) (*store.CachedProfile, error) {
	hash, err := g.keys.ValidateAndHashAPIKey(key)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}

	user, err := g.users.GetByAPIKeyHash(ctx, hash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}
	return ProfileOf(user), nil
}

// loadProfile prefers the cached mirror; a cache miss or a cache outage
// falls through to the database and repopulates the mirror.
func (g *Guard) loadProfile(ctx context.Context, userID string) (*store.CachedProfile, error) {
	if cached, err := g.store.Profile(ctx, userID); err == nil {
		return cached, nil
	} else if !errors.Is(err, models.ErrNotFound) {
		g.logger.Warn("profile cache read failed", slog.String("user_id", userID), slog.Any("error", err))
	}

	user, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// session outlived the account
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}

	profile := ProfileOf(user)
	if err := g.store.CacheProfile(ctx, profile, g.profileCacheTTL); err != nil {
		g.logger.Warn("profile cache write failed", slog.String("user_id", userID), slog.Any("error", err))
	}
	return profile, nil
}

func (g *Guard) writeGuardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrTransient):
		pkghttp.WriteTransient(w)
	case errors.Is(err, models.ErrUnauthenticated):
		pkghttp.WriteUnauthenticated(w)
	default:
		g.logger.Error("guard resolution failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// CurrentProfile extracts the authenticated profile from request
// context. Returns nil outside of guarded routes.
func CurrentProfile(r *http.Request) *store.CachedProfile {
	principal, ok := r.Context().Value(UserContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal.Profile
}

// CurrentPrincipal extracts the full principal, including the scheme
// that authenticated it.
func CurrentPrincipal(r *http.Request) *Principal {
	principal, ok := r.Context().Value(UserContextKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}
