package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avelhart/shelfmark/internal/avatar"
	"github.com/avelhart/shelfmark/internal/config"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
	pkglogger "github.com/avelhart/shelfmark/pkg/logger"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProfile is the slice of the provider profile the reconcile
// step consumes.
type GoogleProfile struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// DisplayName joins the name parts, dropping blanks.
func (p *GoogleProfile) DisplayName() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{p.GivenName, p.FamilyName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// AuthorizeRequest is the product of the authorize step: the provider
// redirect URL plus the PKCE nonce the callback needs back (delivered
// via the pkce cookie).
type AuthorizeRequest struct {
	URL   string
	Nonce string
}

// GoogleStrategy drives the three-action federated flow:
// AwaitingRedirect -> AuthorizedByProvider -> Reconciled.
type GoogleStrategy struct {
	oauth           *oauth2.Config
	users           UserStore
	store           *store.Store
	tokens          *TokenService
	sessions        *VerificationService
	pkceTTL         time.Duration
	profileCacheTTL time.Duration
	logger          *slog.Logger
	audit           *pkglogger.AuditLogger

	// exchange and fetchProfile are swappable in tests; production
	// wiring uses the oauth2 package and the userinfo endpoint.
	exchange     func(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	fetchProfile func(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error)
}

func NewGoogleStrategy(
	cfg *config.GoogleConfig,
	users UserStore,
	sessionStore *store.Store,
	tokens *TokenService,
	sessions *VerificationService,
	pkceTTL, profileCacheTTL time.Duration,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *GoogleStrategy {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"profile", "email"},
		Endpoint:     google.Endpoint,
	}

	gs := &GoogleStrategy{
		oauth:           oauthCfg,
		users:           users,
		store:           sessionStore,
		tokens:          tokens,
		sessions:        sessions,
		pkceTTL:         pkceTTL,
		profileCacheTTL: profileCacheTTL,
		logger:          logger,
		audit:           audit,
	}
	gs.exchange = gs.exchangeCode
	gs.fetchProfile = gs.fetchUserinfo
	return gs
}

// Authorize builds the provider redirect for an action. The PKCE
// verifier is held server-side, keyed by the envelope nonce, for five
// minutes; the S256 challenge travels with the authorize request.
// prompt=select_account forces the account chooser so a cached provider
// session cannot be reused silently.
func (gs *GoogleStrategy) Authorize(ctx context.Context, action, identity string) (*AuthorizeRequest, error) {
	env, err := NewStateEnvelope(action, identity)
	if err != nil {
		return nil, err
	}

	verifier := oauth2.GenerateVerifier()
	if err := gs.store.PutPKCEVerifier(ctx, HashToken(env.Nonce), verifier, gs.pkceTTL); err != nil {
		return nil, err
	}

	url := gs.oauth.AuthCodeURL(env.Encode(),
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)

	return &AuthorizeRequest{URL: url, Nonce: env.Nonce}, nil
}

// Callback runs the AuthorizedByProvider -> Reconciled transition:
// verify PKCE, exchange the code, fetch the profile, reconcile.
// cookieNonce comes from the pkce cookie and must match the state
// envelope's nonce; refreshToken resolves the connect action's caller.
func (gs *GoogleStrategy) Callback(ctx context.Context, code, state, cookieNonce, refreshToken string) (*Outcome, error) {
	env, err := DecodeState(state)
	if err != nil {
		return nil, models.ErrUnauthenticated
	}
	if cookieNonce == "" || cookieNonce != env.Nonce {
		return nil, models.ErrUnauthenticated
	}

	// retrievable exactly once; a replayed callback fails here
	verifier, err := gs.store.ConsumePKCEVerifier(ctx, HashToken(env.Nonce))
	if err != nil {
		if errors.Is(err, models.ErrTransient) {
			return nil, err
		}
		return nil, models.ErrUnauthenticated
	}

	token, err := gs.exchange(ctx, code, verifier)
	if err != nil {
		gs.logger.Warn("oauth code exchange failed", slog.Any("error", err))
		return nil, models.ErrUnauthenticated
	}

	profile, err := gs.fetchProfile(ctx, token)
	if err != nil {
		gs.logger.Warn("oauth profile fetch failed", slog.Any("error", err))
		return nil, models.ErrTransient
	}

	return gs.Authenticate(ctx, Credentials{
		Kind:         KindFederated,
		Action:       env.Action,
		Profile:      profile,
		RefreshToken: refreshToken,
		Fingerprint:  DecodeIdentity(env.Identity),
	})
}

// Authenticate implements Strategy: the reconcile step mapping a
// verified external identity onto the identity store.
func (gs *GoogleStrategy) Authenticate(ctx context.Context, creds Credentials) (*Outcome, error) {
	if creds.Profile == nil || creds.Profile.ID == "" {
		return nil, models.ErrUnauthenticated
	}

	switch creds.Action {
	case models.ActionRegister:
		return gs.register(ctx, creds)
	case models.ActionLogin:
		return gs.login(ctx, creds)
	case models.ActionConnect:
		return gs.connect(ctx, creds)
	default:
		return nil, fmt.Errorf("unsupported oauth action %q", creds.Action)
	}
}

func (gs *GoogleStrategy) register(ctx context.Context, creds Credentials) (*Outcome, error) {
	profile := creds.Profile

	if _, err := gs.users.GetByGoogleID(ctx, profile.ID); err == nil {
		return nil, models.ErrAlreadyRegistered
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	name := profile.DisplayName()
	localPart := profile.Email
	if i := strings.IndexByte(localPart, '@'); i >= 0 {
		localPart = localPart[:i]
	}

	var user *models.User
	// the insert races concurrent registrations probing the same base;
	// the unique constraint is authoritative and a conflict earns one
	// full regeneration
	for attempt := 0; attempt < 2; attempt++ {
		username, err := GenerateUniqueUsername(ctx, gs.users, localPart)
		if err != nil {
			return nil, err
		}

		googleID := profile.ID
		user, err = gs.users.Create(ctx, &models.User{
			Name:     name,
			Username: username,
			Email:    profile.Email,
			GoogleID: &googleID,
			Photo:    avatar.Generate(name),
			Verified: true, // trust delegated to the provider
		})
		if err == nil {
			break
		}
		if errors.Is(err, models.ErrConflict) && attempt == 0 {
			continue
		}
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrAlreadyRegistered
		}
		return nil, err
	}

	pair, err := gs.sessions.EstablishSession(ctx, user, creds.Fingerprint)
	if err != nil {
		return nil, err
	}

	gs.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register_success",
		Strategy:  "google",
		UserID:    user.ID,
		Success:   true,
	})

	return &Outcome{User: user, Session: pair}, nil
}

func (gs *GoogleStrategy) login(ctx context.Context, creds Credentials) (*Outcome, error) {
	user, err := gs.users.GetByGoogleID(ctx, creds.Profile.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotRegistered
		}
		return nil, err
	}

	pair, err := gs.sessions.EstablishSession(ctx, user, creds.Fingerprint)
	if err != nil {
		return nil, err
	}

	gs.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Strategy:  "google",
		UserID:    user.ID,
		Success:   true,
	})

	return &Outcome{User: user, Session: pair}, nil
}

// connect links (or unlinks) the Google identity on an account that is
// already authenticated via the refresh-session cookie, never via the
// OAuth profile itself.
func (gs *GoogleStrategy) connect(ctx context.Context, creds Credentials) (*Outcome, error) {
	if creds.RefreshToken == "" {
		return nil, models.ErrUnauthenticated
	}

	session, err := gs.tokens.ValidateRefresh(ctx, creds.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := gs.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		return nil, err
	}

	googleID := creds.Profile.ID
	switch {
	case !user.HasGoogle():
		if err := gs.users.SetGoogleID(ctx, user.ID, &googleID); err != nil {
			if errors.Is(err, models.ErrConflict) {
				return nil, models.ErrAlreadyRegistered
			}
			return nil, err
		}
		user.GoogleID = &googleID
		gs.audit.LogAccountAction("google_connected", user.ID, creds.ClientIP, nil)

	case *user.GoogleID != googleID:
		return nil, models.ErrAccountMismatch

	default:
		// same id means disconnect; refuse when that would leave the
		// account without any usable credential
		if !user.HasPassword() {
			return nil, models.ErrPasswordRequired
		}
		if err := gs.users.SetGoogleID(ctx, user.ID, nil); err != nil {
			return nil, err
		}
		user.GoogleID = nil
		gs.audit.LogAccountAction("google_disconnected", user.ID, creds.ClientIP, nil)
	}

	// mirror the link change so subsequent reads skip the database
	if err := gs.store.CacheProfile(ctx, ProfileOf(user), gs.profileCacheTTL); err != nil {
		gs.logger.Warn("profile cache write failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	return &Outcome{User: user}, nil
}

func (gs *GoogleStrategy) exchangeCode(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return gs.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
}

func (gs *GoogleStrategy) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*GoogleProfile, error) {
	client := gs.oauth.Client(ctx, token)
	client.Timeout = 10 * time.Second

	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request: unexpected status %d", resp.StatusCode)
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("userinfo decode: %w", err)
	}
	return &profile, nil
}
