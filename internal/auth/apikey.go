package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// APIKeyManager handles API key generation, hashing, and validation.
type APIKeyManager struct {
	prefix string
}

func NewAPIKeyManager() *APIKeyManager {
	return &APIKeyManager{prefix: "shm_"}
}

// GenerateAPIKey returns a new key in the format shm_<64 hex chars>.
// The plaintext is shown to the user once; only the SHA-256 hash is
// stored.
func (m *APIKeyManager) GenerateAPIKey() (plainKey, hash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plainKey = m.prefix + hex.EncodeToString(randomBytes)
	hashBytes := sha256.Sum256([]byte(plainKey))
	hash = hex.EncodeToString(hashBytes[:])

	return plainKey, hash, nil
}

// ValidateAndHashAPIKey checks the format of a presented key and
// returns its storage hash.
func (m *APIKeyManager) ValidateAndHashAPIKey(plainKey string) (string, error) {
	if !strings.HasPrefix(plainKey, m.prefix) {
		return "", errors.New("invalid API key format: missing prefix")
	}
	if len(plainKey) != len(m.prefix)+64 {
		return "", fmt.Errorf("invalid API key format: expected %d chars, got %d", len(m.prefix)+64, len(plainKey))
	}
	hashBytes := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(hashBytes[:]), nil
}

// KeyPrefix returns the first 12 characters of a key for display.
func (m *APIKeyManager) KeyPrefix(plainKey string) (string, error) {
	if len(plainKey) < 12 {
		return "", errors.New("API key too short")
	}
	return plainKey[:12], nil
}

// ConstantTimeHashCompare compares two hex hashes without leaking the
// mismatch position.
func ConstantTimeHashCompare(hash1, hash2 string) bool {
	return subtle.ConstantTimeCompare([]byte(hash1), []byte(hash2)) == 1
}
