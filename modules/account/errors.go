package account

import "errors"

var ErrTooManyAttempts = errors.New("account: too many login attempts")

// Messages shown on the login form. Internal failure details are logged,
// never displayed.
const (
	MsgInvalidCredentials = "Invalid credentials."
	MsgAccessDenied       = "Access denied. Admins only."
	MsgAuthFailed         = "Authentication failed."
	MsgTooManyAttempts    = "Too many sign-in attempts. Try again later."
)

const flashKey = "login"
