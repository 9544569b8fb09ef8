package parse

import (
	"errors"
	"fmt"
)

var (
	ErrMissingConfig       = errors.New("parse: server url and application id are required")
	ErrInvalidCredentials  = errors.New("parse: invalid username or password")
	ErrAccountExists       = errors.New("parse: account already exists")
	ErrAccountCreation     = errors.New("parse: account creation failed")
	ErrInvalidSessionToken = errors.New("parse: invalid session token")
	ErrServiceUnavailable  = errors.New("parse: service unavailable")
)

// Parse Server error codes the client maps to sentinels.
const (
	CodeObjectNotFound      = 101
	CodeUsernameTaken       = 202
	CodeEmailTaken          = 203
	CodeInvalidSessionToken = 209
)

// Error is a rejection reported by Parse Server. Message is the text the
// service returned and is safe to show to the user.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	// Status is the HTTP status of the response.
	Status int `json:"-"`

	sentinel error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse: %s (code %d)", e.Message, e.Code)
}

// Unwrap exposes the sentinel chosen for the call that failed.
func (e *Error) Unwrap() error {
	return e.sentinel
}

// Is matches the sentinel for e.Code, so errors built outside a client call
// classify the same way.
func (e *Error) Is(target error) bool {
	switch e.Code {
	case CodeObjectNotFound:
		return target == ErrInvalidCredentials
	case CodeUsernameTaken, CodeEmailTaken:
		return target == ErrAccountExists
	case CodeInvalidSessionToken:
		return target == ErrInvalidSessionToken
	}
	return false
}
