package bridge_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/session"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

func setup(t *testing.T) (*bridge.Authority, *session.Manager) {
	t.Helper()

	cookies, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	cfg := session.DefaultConfig()
	cfg.CleanupInterval = 0
	sessions := session.New(
		session.WithCookieManager(cookies),
		session.WithConfig(cfg),
	)
	t.Cleanup(func() { _ = sessions.Close() })

	return bridge.New(sessions), sessions
}

func carryCookies(r *http.Request, w *httptest.ResponseRecorder) *http.Request {
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	return r
}

// serve runs h behind the authority middleware and returns the recorder.
func serve(a *bridge.Authority, r *http.Request, h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	a.Middleware(h).ServeHTTP(w, r)
	return w
}

func TestAuthority_IsAuthenticated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		values map[string]any
		want   bool
	}{
		{name: "no keys", values: map[string]any{}, want: false},
		{name: "token only", values: map[string]any{bridge.KeySessionToken: "r:abc"}, want: false},
		{name: "user only", values: map[string]any{bridge.KeyUser: adminRecord()}, want: false},
		{name: "user without object id", values: map[string]any{
			bridge.KeySessionToken: "r:abc",
			bridge.KeyUser:         parse.User{Email: "x@example.com"},
		}, want: false},
		{name: "both keys", values: map[string]any{
			bridge.KeySessionToken: "r:abc",
			bridge.KeyUser:         adminRecord(),
		}, want: true},
		{name: "both keys, user decoded from store json", values: map[string]any{
			bridge.KeySessionToken: "r:abc",
			bridge.KeyUser:         map[string]any{"objectId": "u1", "email": "admin@example.com", "role": "admin"},
		}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			authority, sessions := setup(t)

			w := httptest.NewRecorder()
			_, err := sessions.Authenticate(ctx, w, httptest.NewRequest(http.MethodPost, "/", nil), "u1", tt.values)
			require.NoError(t, err)

			r := carryCookies(httptest.NewRequest(http.MethodGet, "/dashboard", nil), w)
			serve(authority, r, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.want, authority.IsAuthenticated(r.Context()))
				if tt.want {
					require.NotNil(t, authority.CurrentUser(r.Context()))
					assert.Equal(t, "u1", authority.CurrentUser(r.Context()).ID())
					assert.Equal(t, "r:abc", authority.SessionToken(r.Context()))
				} else {
					assert.Nil(t, authority.CurrentUser(r.Context()))
					assert.Empty(t, authority.SessionToken(r.Context()))
				}
			})
		})
	}

	t.Run("no session cookie", func(t *testing.T) {
		t.Parallel()
		authority, _ := setup(t)
		serve(authority, httptest.NewRequest(http.MethodGet, "/", nil), func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, authority.IsAuthenticated(r.Context()))
		})
	})

	t.Run("without middleware reads session from context", func(t *testing.T) {
		t.Parallel()
		authority, _ := setup(t)
		sess := session.NewSession("tok", "u1", "", time.Hour)
		sess.Set(bridge.KeySessionToken, "r:abc")
		sess.Set(bridge.KeyUser, adminRecord())

		assert.True(t, authority.IsAuthenticated(session.WithSession(ctx, sess)))
		assert.False(t, authority.IsAuthenticated(ctx))
	})
}

func TestAuthority_EstablishAndVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("establish then verify", func(t *testing.T) {
		t.Parallel()
		authority, sessions := setup(t)

		serve(authority, httptest.NewRequest(http.MethodPost, "/login", nil), func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, authority.IsAuthenticated(r.Context()))

			sess, err := authority.Establish(r.Context(), w, r, "r:abc", adminRecord())
			require.NoError(t, err)
			assert.Equal(t, "u1", sess.UserID)
			require.NoError(t, authority.Verify(r.Context(), sess))

			assert.True(t, authority.IsAuthenticated(r.Context()), "identity registered for the rest of the request")
			assert.Equal(t, "r:abc", authority.SessionToken(r.Context()))

			stored, err := sessions.Load(ctx, sess.Token)
			require.NoError(t, err)
			user, ok := stored.Get(bridge.KeyUser)
			require.True(t, ok)
			assert.Empty(t, user.(parse.User).SessionToken, "token is stored once, under its own key")
		})
	})

	t.Run("next request is authenticated", func(t *testing.T) {
		t.Parallel()
		authority, _ := setup(t)

		login := httptest.NewRecorder()
		authority.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := authority.Establish(r.Context(), w, r, "r:abc", adminRecord())
			require.NoError(t, err)
		})).ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/login", nil))

		serve(authority, carryCookies(httptest.NewRequest(http.MethodGet, "/dashboard", nil), login), func(w http.ResponseWriter, r *http.Request) {
			assert.True(t, authority.IsAuthenticated(r.Context()))
			assert.Equal(t, "admin@example.com", authority.CurrentUser(r.Context()).Email())
		})
	})

	t.Run("rejects incomplete input", func(t *testing.T) {
		t.Parallel()
		authority, _ := setup(t)
		r := httptest.NewRequest(http.MethodPost, "/login", nil)

		_, err := authority.Establish(ctx, httptest.NewRecorder(), r, "", adminRecord())
		assert.ErrorIs(t, err, bridge.ErrSessionInconsistent)

		_, err = authority.Establish(ctx, httptest.NewRecorder(), r, "r:abc", parse.User{})
		assert.ErrorIs(t, err, bridge.ErrSessionInconsistent)
	})

	t.Run("verify detects missing keys", func(t *testing.T) {
		t.Parallel()
		authority, sessions := setup(t)

		sess, err := sessions.Authenticate(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), "u1", map[string]any{
			bridge.KeySessionToken: "r:abc",
		})
		require.NoError(t, err)
		assert.ErrorIs(t, authority.Verify(ctx, sess), bridge.ErrSessionInconsistent)

		assert.ErrorIs(t, authority.Verify(ctx, nil), bridge.ErrSessionInconsistent)

		gone := session.NewSession("missing", "u1", "", time.Hour)
		err = authority.Verify(ctx, gone)
		assert.ErrorIs(t, err, bridge.ErrSessionInconsistent)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestAuthority_Invalidate(t *testing.T) {
	t.Parallel()
	authority, sessions := setup(t)

	login := httptest.NewRecorder()
	authority.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := authority.Establish(r.Context(), w, r, "r:abc", adminRecord())
		require.NoError(t, err)
	})).ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/login", nil))

	for i := range 2 {
		r := carryCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), login)
		serve(authority, r, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, authority.Invalidate(r.Context(), w, r), "call %d", i)
			assert.False(t, authority.IsAuthenticated(r.Context()))
		})
	}

	_, err := sessions.Get(context.Background(), carryCookies(httptest.NewRequest(http.MethodGet, "/", nil), login))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	serve(authority, httptest.NewRequest(http.MethodPost, "/logout", nil), func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, authority.Invalidate(r.Context(), w, r), "no session at all")
	})
}

func TestAuthority_Discard(t *testing.T) {
	t.Parallel()
	authority, sessions := setup(t)
	ctx := context.Background()

	// an anonymous session the login request arrives with
	anon := httptest.NewRecorder()
	_, err := sessions.Ensure(ctx, anon, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)

	var established *session.Session
	w := serve(authority, carryCookies(httptest.NewRequest(http.MethodPost, "/login", nil), anon), func(w http.ResponseWriter, r *http.Request) {
		sess, err := authority.Establish(r.Context(), w, r, "r:abc", adminRecord())
		require.NoError(t, err)
		established = sess

		// the request cookie still names the pre-rotation token
		require.NoError(t, authority.Invalidate(r.Context(), w, r))
		_, err = sessions.Load(r.Context(), sess.Token)
		require.NoError(t, err, "invalidate alone misses the rotated record")

		require.NoError(t, authority.Discard(r.Context(), w, sess))
		assert.False(t, authority.IsAuthenticated(r.Context()))
	})

	_, err = sessions.Load(ctx, established.Token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	_, err = sessions.Get(ctx, carryCookies(httptest.NewRequest(http.MethodGet, "/", nil), w))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	assert.NoError(t, authority.Discard(ctx, httptest.NewRecorder(), nil))
	assert.NoError(t, authority.Discard(ctx, httptest.NewRecorder(), established), "already gone")
}

func TestAuthority_RequireAuth(t *testing.T) {
	t.Parallel()
	authority, _ := setup(t)

	protected := authority.Middleware(authority.RequireAuth("/login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	w := httptest.NewRecorder()
	protected.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/meal/42?tab=info", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?redirect=%2Fmeal%2F42%3Ftab%3Dinfo", w.Header().Get("Location"))

	login := httptest.NewRecorder()
	authority.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := authority.Establish(r.Context(), w, r, "r:abc", adminRecord())
		require.NoError(t, err)
	})).ServeHTTP(login, httptest.NewRequest(http.MethodPost, "/login", nil))

	w = httptest.NewRecorder()
	protected.ServeHTTP(w, carryCookies(httptest.NewRequest(http.MethodGet, "/dashboard", nil), login))
	assert.Equal(t, http.StatusOK, w.Code)

	guestOnly := authority.Middleware(authority.RequireGuest("/dashboard")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	w = httptest.NewRecorder()
	guestOnly.ServeHTTP(w, carryCookies(httptest.NewRequest(http.MethodGet, "/login", nil), login))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	guestOnly.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
