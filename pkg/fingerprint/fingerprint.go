package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type generator struct {
	headers []string
	ip      func(*http.Request) string
}

type Option func(*generator)

// WithHeaders replaces the default header list.
func WithHeaders(headers ...string) Option {
	return func(g *generator) { g.headers = headers }
}

// WithClientIP mixes the client address into the hash. Sessions then end
// when the address changes, which is common on mobile networks.
func WithClientIP(ip func(*http.Request) string) Option {
	return func(g *generator) { g.ip = ip }
}

// New returns a fingerprint function: 32 hex characters of a SHA-256 over
// the selected components.
func New(opts ...Option) func(*http.Request) string {
	g := &generator{headers: []string{"User-Agent", "Accept-Language"}}
	for _, opt := range opts {
		opt(g)
	}
	return g.generate
}

// Generate uses the default components.
func Generate(r *http.Request) string {
	return New()(r)
}

func (g *generator) generate(r *http.Request) string {
	parts := make([]string, 0, len(g.headers)+1)
	for _, h := range g.headers {
		parts = append(parts, strings.TrimSpace(r.Header.Get(h)))
	}
	if g.ip != nil {
		parts = append(parts, g.ip(r))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:16])
}
