package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Machine-readable error codes surfaced to API clients.
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeConflict         = "CONFLICT"
	CodeAccountMismatch  = "ACCOUNT_MISMATCH"
	CodePasswordRequired = "PASSWORD_REQUIRED"
	CodeInvalidToken     = "INVALID_TOKEN"
	CodeTransient        = "TRANSIENT"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL"
)

// ErrorResponse is the standard API error body. Errors carries
// field-level messages for form validation failures.
type ErrorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteError writes a JSON error response with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Message: message})
}

// WriteValidationFailed writes the field->message map for form errors.
func WriteValidationFailed(w http.ResponseWriter, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: CodeValidationFailed, Errors: fields})
}

// WriteRateLimited writes a 429 with a Retry-After header when a hint
// is available.
func WriteRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
	}
	WriteError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many attempts. Please try again later.")
}

func WriteUnauthenticated(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthenticated, "Authentication required")
}

func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeBadRequest, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

func WriteTransient(w http.ResponseWriter) {
	WriteError(w, http.StatusServiceUnavailable, CodeTransient, "Service temporarily unavailable")
}

// WriteInternalError maps unexpected failures to a single opaque code,
// never leaking internal messages.
func WriteInternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
}

// WriteJSON writes a success payload.
func WriteJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}
