package bridge

import (
	"net/http"
	"net/url"

	"github.com/dmitrymomot/healthkit/handler"
)

// RequireAuth redirects anonymous requests to loginPath, remembering the
// original location in the "redirect" query parameter.
func (a *Authority) RequireAuth(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.IsAuthenticated(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}
			target := loginPath
			if r.Method == http.MethodGet {
				target += "?" + url.Values{"redirect": {r.URL.RequestURI()}}.Encode()
			}
			_ = handler.Redirect(target).Render(w, r)
		})
	}
}

// RequireGuest redirects signed-in users to landingPath.
func (a *Authority) RequireGuest(landingPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a.IsAuthenticated(r.Context()) {
				_ = handler.Redirect(landingPath).Render(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
