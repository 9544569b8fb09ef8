package csrf_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/csrf"
)

func setup(t *testing.T) (*csrf.Protector, http.Handler, *string) {
	t.Helper()

	cookies, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)
	p := csrf.New(cookies)

	var seen string
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = csrf.Token(r.Context())
		if r.URL.Path == "/logout" {
			p.Regenerate(r.Context(), w)
			seen = csrf.Token(r.Context())
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	return p, h, &seen
}

func issue(t *testing.T, h http.Handler) (string, *http.Cookie) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0].Name, cookies[0]
}

func post(path string, c *http.Cookie, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("safe request issues token", func(t *testing.T) {
		t.Parallel()
		_, h, seen := setup(t)
		name, _ := issue(t, h)
		assert.Equal(t, csrf.DefaultCookieName, name)
		assert.NotEmpty(t, *seen)
	})

	t.Run("accepts matching form field", func(t *testing.T) {
		t.Parallel()
		_, h, seen := setup(t)
		_, c := issue(t, h)
		token := *seen

		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("/login", c, url.Values{"_csrf": {token}}))
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, token, *seen)
	})

	t.Run("accepts matching header", func(t *testing.T) {
		t.Parallel()
		_, h, seen := setup(t)
		_, c := issue(t, h)

		req := post("/login", c, nil)
		req.Header.Set(csrf.DefaultHeaderName, *seen)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("rejects missing cookie", func(t *testing.T) {
		t.Parallel()
		_, h, _ := setup(t)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("/login", nil, url.Values{"_csrf": {"x"}}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects wrong token", func(t *testing.T) {
		t.Parallel()
		_, h, _ := setup(t)
		_, c := issue(t, h)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("/login", c, url.Values{"_csrf": {"forged"}}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("regenerate rotates token", func(t *testing.T) {
		t.Parallel()
		_, h, seen := setup(t)
		_, c := issue(t, h)
		old := *seen

		w := httptest.NewRecorder()
		h.ServeHTTP(w, post("/logout", c, url.Values{"_csrf": {old}}))
		require.Equal(t, http.StatusNoContent, w.Code)
		assert.NotEqual(t, old, *seen)
		require.Len(t, w.Result().Cookies(), 1)
	})
}

func TestCustomErrorHandler(t *testing.T) {
	t.Parallel()

	cookies, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	var got error
	p := csrf.New(cookies, csrf.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}))
	h := p.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, post("/login", nil, nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.ErrorIs(t, got, csrf.ErrTokenMissing)
	assert.Equal(t, "", csrf.Token(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
