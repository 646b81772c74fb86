package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAPIKey(t *testing.T) {
	m := NewAPIKeyManager()

	plainKey, hash, err := m.GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plainKey, "shm_"))
	assert.Len(t, plainKey, 68)
	assert.Len(t, hash, 64)

	// hashing the plaintext reproduces the stored hash
	rehash, err := m.ValidateAndHashAPIKey(plainKey)
	require.NoError(t, err)
	assert.Equal(t, hash, rehash)
}

func TestGenerateAPIKey_Unique(t *testing.T) {
	m := NewAPIKeyManager()

	a, _, err := m.GenerateAPIKey()
	require.NoError(t, err)
	b, _, err := m.GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestValidateAndHashAPIKey_Format(t *testing.T) {
	m := NewAPIKeyManager()

	_, err := m.ValidateAndHashAPIKey("nope")
	assert.Error(t, err)

	_, err = m.ValidateAndHashAPIKey("shm_tooshort")
	assert.Error(t, err)

	_, err = m.ValidateAndHashAPIKey("kmn_" + strings.Repeat("a", 64))
	assert.Error(t, err)

	_, err = m.ValidateAndHashAPIKey("shm_" + strings.Repeat("a", 64))
	assert.NoError(t, err)
}

func TestKeyPrefix(t *testing.T) {
	m := NewAPIKeyManager()

	plainKey, _, err := m.GenerateAPIKey()
	require.NoError(t, err)

	prefix, err := m.KeyPrefix(plainKey)
	require.NoError(t, err)
	assert.Len(t, prefix, 12)
	assert.True(t, strings.HasPrefix(plainKey, prefix))

	_, err = m.KeyPrefix("short")
	assert.Error(t, err)
}

func TestConstantTimeHashCompare(t *testing.T) {
	assert.True(t, ConstantTimeHashCompare("abc", "abc"))
	assert.False(t, ConstantTimeHashCompare("abc", "abd"))
	assert.False(t, ConstantTimeHashCompare("abc", "abcd"))
}
