package models

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource already exists")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrBadRequest      = errors.New("bad request")
	ErrInternalServer  = errors.New("internal server error")

	// ErrTransient marks store or provider outages that are safe to retry.
	// It must never be collapsed into ErrUnauthenticated.
	ErrTransient = errors.New("transient backend failure")

	// Authentication flow errors
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrRateLimited           = errors.New("too many attempts")

	// Federated reconciliation errors. The messages travel verbatim to
	// the OAuth popup, so they are phrased for end users.
	ErrAlreadyRegistered = errors.New("Google account is already registered! Try logging in with Google!")
	ErrNotRegistered     = errors.New("Google account is not registered! Try registering it with Google!")
	ErrAccountMismatch   = errors.New("The selected Google account does not match the one connected to your profile!")
	ErrPasswordRequired  = errors.New("Set a password before disconnecting your account from Google!")
)

// RateLimitedError carries the retry hint alongside ErrRateLimited.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter.Round(time.Second))
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// ValidationError carries field-level messages for registration and
// settings forms. Field names match the JSON request fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrBadRequest
}
