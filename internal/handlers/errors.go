package handlers

import (
	"errors"
	"net/http"

	"github.com/avelhart/shelfmark/internal/models"
	pkghttp "github.com/avelhart/shelfmark/pkg/http"
)

// writeDomainError maps domain errors onto the JSON error surface. The
// ordering matters: richer error types are unwrapped before their
// sentinel aliases.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		pkghttp.WriteValidationFailed(w, verr.Fields)
		return
	}

	var rle *models.RateLimitedError
	if errors.As(err, &rle) {
		pkghttp.WriteRateLimited(w, rle.RetryAfter)
		return
	}

	switch {
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteRateLimited(w, 0)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, pkghttp.CodeUnauthenticated, "Invalid credentials")
	case errors.Is(err, models.ErrInvalidOrExpiredToken):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodeInvalidToken, "Invalid or expired token")
	case errors.Is(err, models.ErrAccountMismatch):
		pkghttp.WriteError(w, http.StatusConflict, pkghttp.CodeAccountMismatch, err.Error())
	case errors.Is(err, models.ErrPasswordRequired):
		pkghttp.WriteError(w, http.StatusBadRequest, pkghttp.CodePasswordRequired, err.Error())
	case errors.Is(err, models.ErrAlreadyRegistered), errors.Is(err, models.ErrNotRegistered):
		pkghttp.WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrUnauthenticated):
		pkghttp.WriteUnauthenticated(w)
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrTransient):
		pkghttp.WriteTransient(w)
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Bad request")
	default:
		pkghttp.WriteInternalError(w)
	}
}
