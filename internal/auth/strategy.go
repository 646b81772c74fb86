package auth

import (
	"context"

	"github.com/avelhart/shelfmark/internal/models"
)

// CredentialKind tags the closed set of authentication strategies.
type CredentialKind int

const (
	KindLocal CredentialKind = iota
	KindFederated
)

// Credentials is the strategy-independent input to Authenticate.
// Local logins fill the identifier/password fields; federated callbacks
// fill the action/profile fields. RefreshToken carries the existing
// session cookie for the connect action.
type Credentials struct {
	Kind CredentialKind

	// local
	EmailOrUsername string
	Password        string

	// federated
	Action       string
	Profile      *GoogleProfile
	RefreshToken string

	// shared metadata
	Fingerprint *models.Fingerprint
	ClientIP    string
}

// Outcome is the explicit result of an authentication attempt. Session
// is nil for the connect action, which does not establish a new
// session.
type Outcome struct {
	User    *models.User
	Session *TokenPair
}

// Strategy is the single polymorphic capability both authentication
// paths implement. Dispatch happens by route, not by subclassing.
type Strategy interface {
	Authenticate(ctx context.Context, creds Credentials) (*Outcome, error)
}
