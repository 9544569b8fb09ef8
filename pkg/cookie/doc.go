// Package cookie reads and writes HTTP cookies with optional HMAC signing,
// AES-GCM encryption and one-shot flash values.
//
// Signing and encryption keys are derived from the configured secrets. The
// first secret protects new cookies; every secret is tried when reading, so
// secrets can be rotated by prepending a new one.
//
//	mgr, err := cookie.New([]string{os.Getenv("COOKIE_SECRET")}, cookie.WithSecure(true))
//	_ = mgr.SetEncrypted(w, "sid", token, cookie.WithMaxAge(3600))
//	token, err := mgr.GetEncrypted(r, "sid")
package cookie
