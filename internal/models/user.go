package models

import (
	"time"
)

type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash *string // NULL for Google-only accounts
	GoogleID     *string // NULL when no Google account is linked
	Photo        []byte  // JPEG/PNG/GIF/SVG, generated avatar when absent
	Verified     bool
	APIKeyHash   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account carries a local credential.
// Google-only accounts have none until the user sets one in settings.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasGoogle reports whether a Google account is linked.
func (u *User) HasGoogle() bool {
	return u.GoogleID != nil && *u.GoogleID != ""
}
