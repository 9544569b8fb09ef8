// Package csrf implements double-submit cookie protection for form posts.
//
// The middleware keeps a random token in a signed cookie and exposes it via
// Token(ctx) for rendering into forms. Unsafe requests must echo the token in
// the _csrf form field or the X-CSRF-Token header.
package csrf

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
)

const (
	DefaultCookieName = "__csrf"
	DefaultFieldName  = "_csrf"
	DefaultHeaderName = "X-CSRF-Token"
)

var (
	ErrTokenMissing  = errors.New("csrf.token_missing")
	ErrTokenMismatch = errors.New("csrf.token_mismatch")
)

type contextKey struct{}

// Protector issues and verifies anti-forgery tokens.
type Protector struct {
	cookies    *cookie.Manager
	cookieName string
	fieldName  string
	headerName string
	onError    func(w http.ResponseWriter, r *http.Request, err error)
}

type Option func(*Protector)

func WithCookieName(name string) Option {
	return func(p *Protector) { p.cookieName = name }
}

func WithFieldName(name string) Option {
	return func(p *Protector) { p.fieldName = name }
}

func WithHeaderName(name string) Option {
	return func(p *Protector) { p.headerName = name }
}

// WithErrorHandler replaces the default 403 response for rejected requests.
func WithErrorHandler(fn func(w http.ResponseWriter, r *http.Request, err error)) Option {
	return func(p *Protector) {
		if fn != nil {
			p.onError = fn
		}
	}
}

func New(cookies *cookie.Manager, opts ...Option) *Protector {
	if cookies == nil {
		panic("csrf: cookie manager is required")
	}
	p := &Protector{
		cookies:    cookies,
		cookieName: DefaultCookieName,
		fieldName:  DefaultFieldName,
		headerName: DefaultHeaderName,
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "forbidden", http.StatusForbidden)
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FieldName is the form field checked on unsafe requests.
func (p *Protector) FieldName() string {
	return p.fieldName
}

func (p *Protector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := p.cookies.GetSigned(r, p.cookieName)
		hadToken := err == nil && token != ""

		if !isSafeMethod(r.Method) {
			if !hadToken {
				p.onError(w, r, ErrTokenMissing)
				return
			}
			submitted := r.Header.Get(p.headerName)
			if submitted == "" {
				submitted = r.PostFormValue(p.fieldName)
			}
			if !hmac.Equal([]byte(submitted), []byte(token)) {
				p.onError(w, r, ErrTokenMismatch)
				return
			}
		}

		if !hadToken {
			token = p.issue(w)
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, &token)))
	})
}

// Regenerate replaces the token after a privilege change such as logout.
// The new token is visible through Token for the rest of the request.
func (p *Protector) Regenerate(ctx context.Context, w http.ResponseWriter) string {
	token := p.issue(w)
	if ref, ok := ctx.Value(contextKey{}).(*string); ok {
		*ref = token
	}
	return token
}

func (p *Protector) issue(w http.ResponseWriter) string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("csrf: crypto/rand failed: " + err.Error())
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	p.cookies.SetSigned(w, p.cookieName, token)
	return token
}

// Token returns the token for the current request, or "" outside the middleware.
func Token(ctx context.Context) string {
	if ref, ok := ctx.Value(contextKey{}).(*string); ok {
		return *ref
	}
	return ""
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
