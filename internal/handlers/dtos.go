package handlers

import (
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/store"
)

// UserResponse is the public shape of an account. The photo is served
// from its own endpoint, never inlined.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Google   bool   `json:"google"`
}

func newUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Name:     user.Name,
		Username: user.Username,
		Email:    user.Email,
		Verified: user.Verified,
		Google:   user.HasGoogle(),
	}
}

func newProfileResponse(profile *store.CachedProfile) UserResponse {
	return UserResponse{
		ID:       profile.ID,
		Name:     profile.Name,
		Username: profile.Username,
		Email:    profile.Email,
		Verified: profile.Verified,
		Google:   profile.Google,
	}
}

// SessionResponse pairs the account with its access token. The refresh
// token travels only in the httpOnly cookie.
type SessionResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
}
