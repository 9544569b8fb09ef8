package session

import "errors"

var (
	// ErrInvalidSession indicates a malformed session or a fingerprint mismatch
	ErrInvalidSession = errors.New("session.invalid")

	ErrSessionExpired  = errors.New("session.expired")
	ErrSessionNotFound = errors.New("session.not_found")
	ErrTokenGeneration = errors.New("session.token_generation_failed")

	ErrValueNotFound = errors.New("session.value_not_found")
	ErrInvalidValue  = errors.New("session.invalid_value")

	// ErrStore wraps unexpected storage backend failures
	ErrStore = errors.New("session.store_failure")
)
