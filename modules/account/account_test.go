package account_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/healthkit/handler"
	"github.com/dmitrymomot/healthkit/modules/account"
	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/csrf"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/ratelimiter"
	"github.com/dmitrymomot/healthkit/pkg/session"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

// fakeParse accepts a fixed set of email/password pairs.
type fakeParse struct {
	mu    sync.Mutex
	users map[string]parse.User
	calls int
	err   error
}

func (f *fakeParse) LogIn(_ context.Context, email, password string) (*parse.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[email+":"+password]
	if !ok {
		return nil, &parse.Error{Code: parse.CodeObjectNotFound, Message: "Invalid username/password."}
	}
	u.SessionToken = "r:" + u.ObjectID
	return &u, nil
}

func newFakeParse() *fakeParse {
	return &fakeParse{users: map[string]parse.User{
		"admin@example.com:secret":  {ObjectID: "a1", Email: "admin@example.com", Username: "admin@example.com", Role: "admin"},
		"member@example.com:secret": {ObjectID: "m1", Email: "member@example.com", Username: "member@example.com", Role: "member"},
	}}
}

// lossyStore accepts writes but never returns them.
type lossyStore struct {
	session.Store
}

func (lossyStore) Get(context.Context, string) (*session.Session, error) {
	return nil, session.ErrSessionNotFound
}

type env struct {
	client    *fakeParse
	store     *session.MemoryStore
	cookies   *cookie.Manager
	authority *bridge.Authority
	registry  *prometheus.Registry
	router    http.Handler
}

func newEnv(t *testing.T, storeOpt ...session.Store) *env {
	t.Helper()
	var store session.Store
	if len(storeOpt) > 0 {
		store = storeOpt[0]
	}
	return newEnvWith(t, store)
}

func newEnvWith(t *testing.T, store session.Store, opts ...account.Option) *env {
	t.Helper()

	cookies, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	e := &env{client: newFakeParse(), store: session.NewMemoryStore(0), cookies: cookies}
	if store == nil {
		store = e.store
	}

	sessions := session.New(session.WithCookieManager(cookies), session.WithStore(store))
	t.Cleanup(func() { _ = sessions.Close() })

	e.authority = bridge.New(sessions)
	e.registry = prometheus.NewRegistry()
	svc := account.NewService(account.DefaultConfig(), e.client, e.authority, cookies, csrf.New(cookies), account.DefaultViews(),
		append([]account.Option{account.WithMetrics(account.NewMetrics(e.registry))}, opts...)...,
	)

	r := chi.NewRouter()
	r.Use(sessions.Middleware, e.authority.Middleware)
	r.Group(svc.Routes)
	e.router = r
	return e
}

// browser keeps cookies between requests like a user agent would.
type browser struct {
	t       *testing.T
	env     *env
	cookies map[string]*http.Cookie
}

func (e *env) browser(t *testing.T) *browser {
	return &browser{t: t, env: e, cookies: map[string]*http.Cookie{}}
}

func (b *browser) do(r *http.Request) *httptest.ResponseRecorder {
	for _, c := range b.cookies {
		r.AddCookie(c)
	}
	w := httptest.NewRecorder()
	b.env.router.ServeHTTP(w, r)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return w
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// withCSRF adds the token from the browser's csrf cookie to form.
func (b *browser) withCSRF(form url.Values) {
	c, ok := b.cookies[csrf.DefaultCookieName]
	require.True(b.t, ok, "csrf cookie must be issued by a previous GET")
	token, err := b.env.cookies.Verify(c.Value)
	require.NoError(b.t, err)
	form.Set(csrf.DefaultFieldName, token)
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	b.withCSRF(form)
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(r)
}

func (b *browser) hasSession() bool {
	_, ok := b.cookies["sid"]
	return ok
}

func credentials(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestLogin_Admin(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	b := e.browser(t)

	page := b.get("/login")
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `name="email"`)

	w := b.post("/login", credentials("admin@example.com", "secret"))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	assert.True(t, b.hasSession())
	assert.Equal(t, 1, e.store.Len())

	dash := b.get("/dashboard")
	assert.Equal(t, http.StatusOK, dash.Code)
	assert.Contains(t, dash.Body.String(), "admin@example.com")

	// signed-in users skip the login page
	again := b.get("/login")
	assert.Equal(t, http.StatusSeeOther, again.Code)
	assert.Equal(t, "/dashboard", again.Header().Get("Location"))

	assert.Equal(t, 1.0, e.attempts(t, "established"))
}

// attempts reads healthkit_login_attempts_total for one outcome.
func (e *env) attempts(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "healthkit_login_attempts_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestLogin_IntendedRedirect(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	b := e.browser(t)

	w := b.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, w.Code)
	loginURL := w.Header().Get("Location")
	assert.Equal(t, "/login?redirect=%2Fdashboard", loginURL)

	page := b.get(loginURL)
	assert.Contains(t, page.Body.String(), `name="redirect_url" value="/dashboard"`)

	form := credentials("admin@example.com", "secret")
	form.Set("redirect_url", "/meal/7")
	w = b.post("/login", form)
	assert.Equal(t, "/meal/7", w.Header().Get("Location"))

	t.Run("external redirect ignored", func(t *testing.T) {
		e := newEnv(t)
		b := e.browser(t)
		b.get("/login")

		form := credentials("admin@example.com", "secret")
		form.Set("redirect_url", "https://evil.example.com/")
		w := b.post("/login", form)
		assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	})
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		form      url.Values
		outcome   string
		wantError string
		wantCalls int
	}{
		{
			name:      "member is denied",
			form:      credentials("member@example.com", "secret"),
			outcome:   "access_denied",
			wantError: account.MsgAccessDenied,
			wantCalls: 1,
		},
		{
			name:      "wrong password shows service message",
			form:      credentials("admin@example.com", "nope"),
			outcome:   "invalid_credentials",
			wantError: "Invalid username/password.",
			wantCalls: 1,
		},
		{
			name:      "malformed email never reaches the service",
			form:      credentials("not-an-email", "secret"),
			outcome:   "invalid_input",
			wantError: "must be a valid email address",
			wantCalls: 0,
		},
		{
			name:      "missing password",
			form:      credentials("admin@example.com", ""),
			outcome:   "invalid_input",
			wantError: "is required",
			wantCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newEnv(t)
			b := e.browser(t)
			b.get("/login?redirect=%2Fmeals")

			tt.form.Set("redirect_url", "/meals")
			w := b.post("/login?redirect=%2Fmeals", tt.form)
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/login?redirect=%2Fmeals", w.Header().Get("Location"))

			assert.False(t, b.hasSession(), "no session cookie")
			assert.Equal(t, 0, e.store.Len(), "no session record")
			assert.Equal(t, tt.wantCalls, e.client.calls)
			assert.Equal(t, 1.0, e.attempts(t, tt.outcome))

			page := b.get(w.Header().Get("Location"))
			assert.Equal(t, http.StatusOK, page.Code)
			assert.Contains(t, page.Body.String(), tt.wantError)
			assert.Contains(t, page.Body.String(), `value="`+tt.form.Get("email")+`"`, "email is kept")

			// flash is consumed once
			assert.NotContains(t, b.get("/login").Body.String(), tt.wantError)
		})
	}
}

func TestLogin_ServiceUnavailable(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.client.err = parse.ErrServiceUnavailable
	b := e.browser(t)
	b.get("/login")

	w := b.post("/login", credentials("admin@example.com", "secret"))
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Contains(t, b.get("/login").Body.String(), account.MsgInvalidCredentials)
	assert.False(t, b.hasSession())
}

func TestLogin_VerificationFailure(t *testing.T) {
	t.Parallel()
	inner := session.NewMemoryStore(0)
	t.Cleanup(func() { _ = inner.Close() })
	e := newEnv(t, lossyStore{Store: inner})
	b := e.browser(t)
	b.get("/login")

	w := b.post("/login", credentials("admin@example.com", "secret"))
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.False(t, b.hasSession())
	assert.Zero(t, inner.Len(), "rotated session record is removed")

	body := b.get("/login").Body.String()
	assert.Contains(t, body, account.MsgAuthFailed)
	assert.NotContains(t, body, "not_found", "internal detail is not shown")
	assert.Equal(t, 1.0, e.attempts(t, "failed"))
}

func TestLogin_Throttled(t *testing.T) {
	t.Parallel()

	limiterStore := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limiterStore.Close)
	limiter, err := ratelimiter.NewBucket(limiterStore, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	e := newEnvWith(t, nil, account.WithRateLimiter(limiter, nil))
	b := e.browser(t)
	b.get("/login")

	b.post("/login", credentials("admin@example.com", "wrong"))
	b.post("/login", credentials("admin@example.com", "wrong"))
	assert.Equal(t, 2, e.client.calls)

	// the correct password no longer reaches the service
	b.post("/login", credentials("admin@example.com", "secret"))
	assert.Equal(t, 2, e.client.calls)
	assert.False(t, b.hasSession())
	assert.Contains(t, b.get("/login").Body.String(), account.MsgTooManyAttempts)
	assert.Equal(t, 1.0, e.attempts(t, "throttled"))

	// another address has its own bucket
	other := e.browser(t)
	other.get("/login")
	form := credentials("admin@example.com", "secret")
	other.withCSRF(form)
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.RemoteAddr = "198.51.100.99:1234"
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := other.do(r)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	assert.Equal(t, 1, limiterStore.Len(), "successful login resets its bucket")
}

func TestLogout(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	b := e.browser(t)
	b.get("/login")
	b.post("/login", credentials("admin@example.com", "secret"))
	require.True(t, b.hasSession())

	w := b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	assert.False(t, b.hasSession())
	assert.Equal(t, 0, e.store.Len())

	dash := b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, dash.Code)

	// a second logout without a session ends the same way
	w = b.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLogout_RequiresCSRF(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logout", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFlow_Run(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	flow := account.NewFlow(account.DefaultConfig(), e.client, e.authority, nil)

	r := httptest.NewRequest(http.MethodPost, "/login", nil)
	out := flow.Run(r.Context(), httptest.NewRecorder(), r, account.LoginRequest{
		Email:    "member@example.com",
		Password: "secret",
	})
	assert.Equal(t, account.ResultAccessDenied, out.Result)
	assert.ErrorIs(t, out.Err, bridge.ErrAccessDenied)
	assert.Equal(t, account.MsgAccessDenied, out.Errors.Get("email"))
	assert.False(t, out.Established())

	out = flow.Run(r.Context(), httptest.NewRecorder(), r, account.LoginRequest{
		Email:    "admin@example.com",
		Password: "wrong",
	})
	assert.Equal(t, account.ResultInvalidCredentials, out.Result)
	assert.ErrorIs(t, out.Err, bridge.ErrInvalidCredentials)
	assert.ErrorIs(t, out.Err, parse.ErrInvalidCredentials)

	w := httptest.NewRecorder()
	out = flow.Run(r.Context(), w, r, account.LoginRequest{
		Email:    "admin@example.com",
		Password: "secret",
	})
	require.True(t, out.Established())
	assert.Equal(t, "/dashboard", out.Redirect)
	assert.Equal(t, "a1", out.Identity.ID())
	assert.NotEmpty(t, w.Result().Cookies())

}

func TestDefaultViews_EscapeOutput(t *testing.T) {
	t.Parallel()
	views := account.DefaultViews()

	var login strings.Builder
	require.NoError(t, views.LoginPage(account.LoginPageParams{
		Action:    "/login",
		Email:     `"><script>alert(1)</script>`,
		CSRFField: "_csrf",
		CSRFToken: "tok",
		Errors:    handler.FieldError("email", "<b>nope</b>"),
	}).Render(context.Background(), &login))
	assert.NotContains(t, login.String(), "<script>")
	assert.Contains(t, login.String(), "&lt;script&gt;")
	assert.Contains(t, login.String(), "&lt;b&gt;nope&lt;/b&gt;")

	var dashboard strings.Builder
	require.NoError(t, views.DashboardPage(account.DashboardPageParams{
		User:       bridge.NewIdentity(parse.User{ObjectID: "u1", Email: "a<b@example.com", Role: "admin"}),
		LogoutPath: "/logout",
		CSRFField:  "_csrf",
		CSRFToken:  "tok",
	}).Render(context.Background(), &dashboard))
	assert.Contains(t, dashboard.String(), "a&lt;b@example.com")
	assert.Contains(t, dashboard.String(), `action="/logout"`)
}
