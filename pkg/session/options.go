package session

import (
	"net/http"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// FingerprintFunc derives a device fingerprint from the request
type FingerprintFunc func(r *http.Request) string

func WithStore(store Store) Option {
	return func(m *Manager) { m.store = store }
}

func WithTransport(transport Transport) Option {
	return func(m *Manager) { m.transport = transport }
}

func WithConfig(config Config) Option {
	return func(m *Manager) { m.config = config }
}

func WithCookieName(name string) Option {
	return func(m *Manager) { m.config.CookieName = name }
}

// WithFingerprint binds sessions to the value returned by fn; a mismatch
// invalidates the session.
func WithFingerprint(fn FingerprintFunc) Option {
	return func(m *Manager) { m.fingerprint = fn }
}

// WithCookieManager sets the cookie manager for the default cookie transport
func WithCookieManager(cookieMgr *cookie.Manager, opts ...cookie.Option) Option {
	return func(m *Manager) {
		m.cookieManager = cookieMgr
		m.cookieOptions = opts
	}
}
