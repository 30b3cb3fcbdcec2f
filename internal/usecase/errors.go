package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrRateLimited           = errors.New("provider rate limited")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrNotConfigured         = errors.New("feature is not configured")

	// ErrTransient marks upstream failures worth retrying: network errors,
	// truncated reads and provider 5xx responses.
	ErrTransient = errors.New("transient upstream failure")
)
