package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/session"
)

func testConfig() session.Config {
	return session.Config{
		CookieName:              "test-sid",
		AnonIdleTimeout:         30 * time.Minute,
		AnonMaxLifetime:         24 * time.Hour,
		AuthIdleTimeout:         2 * time.Hour,
		AuthMaxLifetime:         30 * 24 * time.Hour,
		ActivityUpdateThreshold: 5 * time.Minute,
		CleanupInterval:         0,
	}
}

func setupManager(t *testing.T, opts ...session.Option) (*session.Manager, *session.MemoryStore) {
	t.Helper()

	cookieMgr, err := cookie.New([]string{"test-secret-key-that-is-long-enough"})
	require.NoError(t, err)

	store := session.NewMemoryStore(0)
	manager := session.New(append([]session.Option{
		session.WithCookieManager(cookieMgr),
		session.WithConfig(testConfig()),
		session.WithStore(store),
	}, opts...)...)
	t.Cleanup(func() { _ = manager.Close() })

	return manager, store
}

func withCookies(r *http.Request, w *httptest.ResponseRecorder) *http.Request {
	for _, c := range w.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	return r
}

func TestManager_Ensure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates new session", func(t *testing.T) {
		t.Parallel()
		manager, _ := setupManager(t)
		w := httptest.NewRecorder()

		sess, err := manager.Ensure(ctx, w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.False(t, sess.IsAuthenticated())
		assert.NotEmpty(t, sess.Token)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "test-sid", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
		assert.NotEqual(t, sess.Token, cookies[0].Value, "token must not travel in clear text")
	})

	t.Run("returns existing valid session", func(t *testing.T) {
		t.Parallel()
		manager, _ := setupManager(t)

		w1 := httptest.NewRecorder()
		sess1, err := manager.Ensure(ctx, w1, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		r2 := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w1)
		sess2, err := manager.Ensure(ctx, httptest.NewRecorder(), r2)
		require.NoError(t, err)
		assert.Equal(t, sess1.ID, sess2.ID)
		assert.Equal(t, sess1.Token, sess2.Token)
	})

	t.Run("replaces unreadable cookie", func(t *testing.T) {
		t.Parallel()
		manager, _ := setupManager(t)
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(&http.Cookie{Name: "test-sid", Value: "garbage"})
		w := httptest.NewRecorder()

		sess, err := manager.Ensure(ctx, w, r)
		require.NoError(t, err)
		assert.NotNil(t, sess)
		assert.Len(t, w.Result().Cookies(), 1)
	})
}

func TestManager_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, _ := setupManager(t)

	t.Run("no cookie", func(t *testing.T) {
		_, err := manager.Get(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("cookie for deleted session", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		_, err := manager.Ensure(ctx, w, r)
		require.NoError(t, err)

		r2 := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w)
		require.NoError(t, manager.Destroy(ctx, httptest.NewRecorder(), r2))

		_, err = manager.Get(ctx, r2)
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})
}

func TestManager_Authenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rotates token and writes values", func(t *testing.T) {
		t.Parallel()
		manager, store := setupManager(t)

		w1 := httptest.NewRecorder()
		anon, err := manager.Ensure(ctx, w1, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		r2 := withCookies(httptest.NewRequest(http.MethodPost, "/login", nil), w1)
		w2 := httptest.NewRecorder()
		sess, err := manager.Authenticate(ctx, w2, r2, "user-1", map[string]any{
			"sessionToken": "r:abc",
		})
		require.NoError(t, err)

		assert.Equal(t, anon.ID, sess.ID)
		assert.NotEqual(t, anon.Token, sess.Token)
		assert.True(t, sess.IsAuthenticated())
		assert.Equal(t, "user-1", sess.UserID)

		_, err = store.Get(ctx, anon.Token)
		assert.ErrorIs(t, err, session.ErrSessionNotFound, "pre-login token must be revoked")

		stored, err := store.Get(ctx, sess.Token)
		require.NoError(t, err)
		token, ok := stored.GetString("sessionToken")
		assert.True(t, ok)
		assert.Equal(t, "r:abc", token)

		r3 := withCookies(httptest.NewRequest(http.MethodGet, "/dashboard", nil), w2)
		loaded, err := manager.Get(ctx, r3)
		require.NoError(t, err)
		assert.Equal(t, sess.Token, loaded.Token)
	})

	t.Run("creates session when none exists", func(t *testing.T) {
		t.Parallel()
		manager, store := setupManager(t)
		w := httptest.NewRecorder()

		sess, err := manager.Authenticate(ctx, w, httptest.NewRequest(http.MethodPost, "/login", nil), "user-2", map[string]any{"k": "v"})
		require.NoError(t, err)
		assert.Equal(t, 1, store.Len())
		assert.Equal(t, "v", sess.Data["k"])
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), sess.ExpiresAt, time.Minute)
		require.Len(t, w.Result().Cookies(), 1)
	})

	t.Run("requires user id", func(t *testing.T) {
		t.Parallel()
		manager, _ := setupManager(t)
		_, err := manager.Authenticate(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), "", nil)
		assert.ErrorIs(t, err, session.ErrInvalidSession)
	})
}

func TestManager_Destroy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, store := setupManager(t)

	w1 := httptest.NewRecorder()
	_, err := manager.Authenticate(ctx, w1, httptest.NewRequest(http.MethodPost, "/", nil), "user-1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	w2 := httptest.NewRecorder()
	require.NoError(t, manager.Destroy(ctx, w2, withCookies(httptest.NewRequest(http.MethodPost, "/logout", nil), w1)))
	assert.Equal(t, 0, store.Len())

	cookies := w2.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "test-sid", cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)

	t.Run("without session", func(t *testing.T) {
		assert.NoError(t, manager.Destroy(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/logout", nil)))
	})
}

func TestManager_SetAndSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, _ := setupManager(t)

	w := httptest.NewRecorder()
	require.NoError(t, manager.Set(ctx, w, httptest.NewRequest(http.MethodGet, "/", nil), "theme", "dark"))

	r := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w)
	val, ok := manager.GetValue(ctx, r, "theme")
	assert.True(t, ok)
	assert.Equal(t, "dark", val)

	sess, err := manager.Get(ctx, r)
	require.NoError(t, err)
	sess.Delete("theme")
	require.NoError(t, manager.Save(ctx, sess))

	_, ok = manager.GetValue(ctx, r, "theme")
	assert.False(t, ok)

	assert.ErrorIs(t, manager.Save(ctx, nil), session.ErrInvalidSession)
}

func TestManager_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, store := setupManager(t)

	w := httptest.NewRecorder()
	sess, err := manager.Ensure(ctx, w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	sess.ExpiresAt = time.Now().Add(time.Minute)
	require.NoError(t, store.Update(ctx, sess))

	require.NoError(t, manager.Refresh(ctx, httptest.NewRecorder(), withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w)))

	stored, err := store.Get(ctx, sess.Token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), stored.ExpiresAt, time.Minute)
}

func TestManager_WithFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, _ := setupManager(t, session.WithFingerprint(func(r *http.Request) string {
		return r.UserAgent()
	}))

	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("User-Agent", "browser-a")
	w := httptest.NewRecorder()
	_, err := manager.Ensure(ctx, w, r1)
	require.NoError(t, err)

	same := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w)
	same.Header.Set("User-Agent", "browser-a")
	_, err = manager.Get(ctx, same)
	assert.NoError(t, err)

	other := withCookies(httptest.NewRequest(http.MethodGet, "/", nil), w)
	other.Header.Set("User-Agent", "browser-b")
	_, err = manager.Get(ctx, other)
	assert.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestManager_PanicOnNoCookieManager(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		session.New(session.WithStore(session.NewMemoryStore(0)))
	})
}

func TestConfig_Timeouts(t *testing.T) {
	t.Parallel()
	cfg := session.DefaultConfig()

	idle, maxLifetime := cfg.Timeouts(false)
	assert.Equal(t, 30*time.Minute, idle)
	assert.Equal(t, 24*time.Hour, maxLifetime)

	idle, maxLifetime = cfg.Timeouts(true)
	assert.Equal(t, 2*time.Hour, idle)
	assert.Equal(t, 30*24*time.Hour, maxLifetime)
}

func TestManager_Load(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, _ := setupManager(t)

	sess, err := manager.Authenticate(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil), "user-1", map[string]any{"a": "b"})
	require.NoError(t, err)

	loaded, err := manager.Load(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "b", loaded.Data["a"])

	_, err = manager.Load(ctx, "")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = manager.Load(ctx, "unknown")
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

// headerTransport carries the token in the X-Session header.
type headerTransport struct{}

func (headerTransport) GetToken(r *http.Request) (string, error) {
	if token := r.Header.Get("X-Session"); token != "" {
		return token, nil
	}
	return "", session.ErrSessionNotFound
}

func (headerTransport) SetToken(w http.ResponseWriter, token string, _ time.Duration) error {
	w.Header().Set("X-Session", token)
	return nil
}

func (headerTransport) ClearToken(w http.ResponseWriter) error {
	w.Header().Del("X-Session")
	return nil
}

func TestManager_Options(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cookie name", func(t *testing.T) {
		t.Parallel()
		manager, _ := setupManager(t, session.WithCookieName("hk_session"))

		w := httptest.NewRecorder()
		_, err := manager.Ensure(ctx, w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "hk_session", cookies[0].Name)
	})

	t.Run("custom transport", func(t *testing.T) {
		t.Parallel()
		manager, store := setupManager(t, session.WithTransport(headerTransport{}))

		w := httptest.NewRecorder()
		sess, err := manager.Ensure(ctx, w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Empty(t, w.Result().Cookies())
		assert.Equal(t, sess.Token, w.Header().Get("X-Session"))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Session", sess.Token)
		got, err := manager.Get(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, 1, store.Len())
	})
}

func TestManager_Revoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	manager, store := setupManager(t)

	anon := httptest.NewRecorder()
	_, err := manager.Ensure(ctx, anon, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	login := httptest.NewRecorder()
	sess, err := manager.Authenticate(ctx, login, withCookies(httptest.NewRequest(http.MethodPost, "/login", nil), anon), "u1", nil)
	require.NoError(t, err)
	require.Equal(t, 1, store.Len(), "rotation drops the anonymous record")

	w := httptest.NewRecorder()
	require.NoError(t, manager.Revoke(ctx, w, sess.Token))
	assert.Zero(t, store.Len())

	var cleared bool
	for _, c := range w.Result().Cookies() {
		if c.Name == testConfig().CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "client token is cleared")

	require.NoError(t, manager.Revoke(ctx, httptest.NewRecorder(), sess.Token), "already revoked")
	require.NoError(t, manager.Revoke(ctx, httptest.NewRecorder(), ""))
}
