// Package parse is a minimal client for the Parse Server REST API covering
// the user endpoints the authentication bridge needs.
//
//	client, err := parse.New(cfg)
//	if err != nil {
//		return err
//	}
//	user, err := client.LogIn(ctx, email, password)
//	switch {
//	case errors.Is(err, parse.ErrInvalidCredentials):
//		// wrong email or password
//	case err != nil:
//		// service failure
//	}
//	token := user.SessionToken
//
// Service rejections are returned as *Error carrying the code and message
// from the server; errors.Is matches them against the package sentinels.
// Transport failures wrap ErrServiceUnavailable.
//
// Every call runs in an OpenTelemetry client span. Credentials and tokens are
// never recorded as span attributes.
package parse
