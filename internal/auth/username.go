package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const maxUsernameProbes = 10

// GenerateUniqueUsername derives a free username from a base (typically
// an email local-part) by probing the identity store with growing
// numeric suffixes. The loop is best-effort: final uniqueness is
// enforced by the store's unique constraint, and an insert-time
// conflict triggers one regeneration of the whole candidate.
func GenerateUniqueUsername(ctx context.Context, users UserStore, base string) (string, error) {
	base = sanitizeUsername(base)

	candidate := base
	for i := 0; i < maxUsernameProbes; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s%d", base, i)
		}
		exists, err := users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}

	// dense collision neighborhood; fall back to a random suffix
	candidate = fmt.Sprintf("%s-%s", base, uuid.New().String()[:8])
	exists, err := users.UsernameExists(ctx, candidate)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("unable to find a free username for %q", base)
	}
	return candidate, nil
}

// sanitizeUsername lowercases and strips characters outside
// [a-z0-9._-]; an empty result falls back to "user".
func sanitizeUsername(base string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(base) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}
