package logger

import (
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "j***@e***.com").
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	local, domain := parts[0], parts[1]
	if len(local) > 1 {
		local = string(local[0]) + strings.Repeat("*", len(local)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return local + "@" + domain
}

// sensitiveParams are query parameters whose values must never be logged.
// OAuth callback codes and verification tokens both travel in the query.
var sensitiveParams = map[string]bool{
	"password": true,
	"token":    true,
	"code":     true,
	"state":    true,
	"identity": true,
	"api_key":  true,
	"secret":   true,
}

// SanitizeQueryString reports whether the raw query contains sensitive
// parameters and should be redacted wholesale.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	for _, pair := range strings.Split(rawQuery, "&") {
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		if sensitiveParams[strings.ToLower(key)] {
			return true
		}
	}
	return false
}
