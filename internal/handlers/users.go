package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/avelhart/shelfmark/internal/auth"
	"github.com/avelhart/shelfmark/internal/models"
	"github.com/avelhart/shelfmark/internal/services"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
)

// AccountService is the account mutation surface the handler needs.
type AccountService interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	UpdateSettings(ctx context.Context, userID string, update services.SettingsUpdate) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RotateAPIKey(ctx context.Context, userID string) (string, error)
	RevokeAPIKey(ctx context.Context, userID string) error
	Terminate(ctx context.Context, userID, password string) error
	Photo(ctx context.Context, userID string) ([]byte, string, error)
}

// UserHandler handles the account routes behind the session guard.
type UserHandler struct {
	service AccountService
}

func NewUserHandler(service AccountService) *UserHandler {
	return &UserHandler{service: service}
}

type UpdateSettingsRequest struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Photo    *string `json:"photo,omitempty"` // base64; empty string regenerates the avatar
}

type ChangePasswordRequest struct {
	CurrentPass string `json:"currentPass,omitempty"`
	Pass        string `json:"pass" validate:"required"`
}

type TerminateRequest struct {
	Pass string `json:"pass,omitempty"`
}

// Me handles GET /users/me, served straight from the guard's profile.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newProfileResponse(profile))
}

// UpdateSettings handles PATCH /users/me.
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	update := services.SettingsUpdate{Name: req.Name, Username: req.Username}
	if req.Photo != nil {
		photo, err := decodePhoto(*req.Photo)
		if err != nil {
			pkghttp.WriteValidationFailed(w, map[string]string{"photo": "photo must be base64-encoded"})
			return
		}
		update.Photo = photo
	}

	user, err := h.service.UpdateSettings(r.Context(), profile.ID, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, newUserResponse(user))
}

// ChangePassword handles POST /users/me/password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationFailed(w, fields)
		return
	}

	if err := h.service.ChangePassword(r.Context(), profile.ID, req.CurrentPass, req.Pass); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateAPIKey handles POST /users/api-key. The plaintext key appears
// in this response and nowhere else.
func (h *UserHandler) RotateAPIKey(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	plainKey, err := h.service.RotateAPIKey(r.Context(), profile.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, map[string]string{"api_key": plainKey})
}

// RevokeAPIKey handles DELETE /users/api-key.
func (h *UserHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	if err := h.service.RevokeAPIKey(r.Context(), profile.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Terminate handles DELETE /users/me.
func (h *UserHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	var req TerminateRequest
	if r.Body != nil {
		// body is optional for accounts without a password
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	if err := h.service.Terminate(r.Context(), profile.ID, req.Pass); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodePhoto decodes a base64 photo payload. The empty string is
// valid and means "regenerate the avatar".
func decodePhoto(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return data, nil
}

// Photo handles GET /users/me/photo.
func (h *UserHandler) Photo(w http.ResponseWriter, r *http.Request) {
	profile := auth.CurrentProfile(r)
	if profile == nil {
		pkghttp.WriteUnauthenticated(w)
		return
	}

	data, mime, err := h.service.Photo(r.Context(), profile.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
