package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/avelhart/shelfmark/internal/models"
	"github.com/google/uuid"
)

// StateEnvelope rides the OAuth state parameter through the provider.
// Identity is the base64 JSON client fingerprint as sent by the
// browser; Nonce keys the server-side PKCE verifier.
type StateEnvelope struct {
	Action   string `json:"action"`
	Identity string `json:"identity,omitempty"`
	Nonce    string `json:"nonce"`
}

// NewStateEnvelope builds an envelope for an authorize request.
func NewStateEnvelope(action, identity string) (*StateEnvelope, error) {
	if !models.ValidAction(action) {
		return nil, fmt.Errorf("unsupported oauth action %q", action)
	}
	return &StateEnvelope{
		Action:   action,
		Identity: identity,
		Nonce:    uuid.New().String(),
	}, nil
}

// Encode serializes the envelope for the state parameter.
func (e *StateEnvelope) Encode() string {
	data, _ := json.Marshal(e)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeState parses a callback state parameter. The returned envelope
// must decode to exactly what was sent in the authorize redirect.
func DecodeState(state string) (*StateEnvelope, error) {
	data, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return nil, fmt.Errorf("malformed state parameter: %w", err)
	}

	var env StateEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed state parameter: %w", err)
	}
	if !models.ValidAction(env.Action) {
		return nil, fmt.Errorf("unsupported oauth action %q", env.Action)
	}
	if env.Nonce == "" {
		return nil, fmt.Errorf("state parameter missing nonce")
	}
	return &env, nil
}

// DecodeIdentity parses a base64 JSON fingerprint blob. Malformed
// payloads mean "no fingerprint available", never a hard failure.
func DecodeIdentity(identity string) *models.Fingerprint {
	if identity == "" {
		return nil
	}

	data, err := base64.StdEncoding.DecodeString(identity)
	if err != nil {
		if data, err = base64.RawURLEncoding.DecodeString(identity); err != nil {
			return nil
		}
	}

	var fp models.Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil
	}
	return &fp
}
