package bridge

import "errors"

var (
	ErrInvalidCredentials = errors.New("bridge: invalid credentials")
	ErrAccessDenied       = errors.New("bridge: access denied")

	// ErrSessionInconsistent means the session read back after a login does
	// not hold both the external token and the user record.
	ErrSessionInconsistent = errors.New("bridge: session inconsistent after establishment")

	ErrUserNotFound           = errors.New("bridge: user not found")
	ErrCredentialsUnsupported = errors.New("bridge: provider does not support credential lookup")
)
