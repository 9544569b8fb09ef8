package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/healthkit/pkg/cookie"
)

// Manager handles session operations
type Manager struct {
	store         Store
	transport     Transport
	config        Config
	fingerprint   FingerprintFunc
	cookieManager *cookie.Manager
	cookieOptions []cookie.Option
	activity      chan activityUpdate
	done          chan struct{}
	closeOnce     sync.Once
	workerDone    chan struct{}
}

type activityUpdate struct {
	token string
	at    time.Time
}

// New creates a session manager. It panics when neither a Transport nor a
// cookie manager for the default cookie transport is configured.
func New(opts ...Option) *Manager {
	m := &Manager{
		config:     DefaultConfig(),
		activity:   make(chan activityUpdate, 1000),
		done:       make(chan struct{}),
		workerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	if m.transport == nil {
		if m.cookieManager == nil {
			panic("session: cookie manager is required when using default cookie transport")
		}
		m.transport = NewCookieTransport(m.cookieManager, m.config.CookieName, m.config.SecureCookies, m.cookieOptions...)
	}

	go m.activityWorker()
	return m
}

// Ensure returns the current session or starts a new anonymous one.
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	session, err := m.Get(ctx, r)
	if err == nil {
		if time.Since(session.LastActivityAt) >= m.config.ActivityUpdateThreshold {
			m.queueActivity(session.Token)
		}
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		_ = m.transport.ClearToken(w)
	}

	session, err = m.create(ctx, r, "", nil)
	if err != nil {
		return nil, err
	}
	idle, _ := m.config.Timeouts(false)
	if err := m.transport.SetToken(w, session.Token, idle); err != nil {
		_ = m.store.Delete(ctx, session.Token)
		return nil, err
	}
	return session, nil
}

// Get loads the session referenced by the request token.
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := m.transport.GetToken(r)
	if err != nil {
		return nil, err
	}
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.validate(session, r); err != nil {
		return nil, err
	}
	return session, nil
}

// Load reads a session straight from the store by token, bypassing the
// transport. Used to confirm that a write is visible.
func (m *Manager) Load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.IsExpired() {
		return nil, ErrSessionExpired
	}
	return session, nil
}

// Authenticate binds the session to userID, merges values into its data and
// issues a fresh token. The old token is revoked and the new session state is
// persisted in a single store write, so a reader never observes a
// half-written login.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string, values map[string]any) (*Session, error) {
	if userID == "" {
		return nil, ErrInvalidSession
	}

	session, err := m.Get(ctx, r)
	if err != nil {
		session, err = m.create(ctx, r, userID, values)
		if err != nil {
			return nil, err
		}
	} else {
		token, err := generateToken()
		if err != nil {
			return nil, err
		}
		oldToken := session.Token

		now := time.Now()
		idle, maxLifetime := m.config.Timeouts(true)
		session.Token = token
		session.UserID = userID
		session.SetAll(values)
		session.ExpiresAt = calculateExpiry(session.CreatedAt, now, idle, maxLifetime)
		session.LastActivityAt = now

		if err := m.store.Create(ctx, session); err != nil {
			return nil, err
		}
		_ = m.store.Delete(ctx, oldToken)
	}

	idle, _ := m.config.Timeouts(true)
	if err := m.transport.SetToken(w, session.Token, idle); err != nil {
		_ = m.store.Delete(ctx, session.Token)
		return nil, err
	}
	return session, nil
}

// Save persists data changes made to a session obtained from this manager.
func (m *Manager) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrInvalidSession
	}
	return m.store.Update(ctx, session)
}

// Destroy deletes the session and clears the client token.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	token, err := m.transport.GetToken(r)
	if err == nil && token != "" {
		if err := m.store.Delete(ctx, token); err != nil {
			_ = m.transport.ClearToken(w)
			return err
		}
	}
	return m.transport.ClearToken(w)
}

// Revoke deletes the session stored under token and clears the client
// token. Use it for a session the request cookie may not point at yet, such
// as one just rotated by Authenticate.
func (m *Manager) Revoke(ctx context.Context, w http.ResponseWriter, token string) error {
	clearErr := m.transport.ClearToken(w)
	if token == "" {
		return clearErr
	}
	if err := m.store.Delete(ctx, token); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return clearErr
}

// Set stores a value in the current session, creating one when needed.
func (m *Manager) Set(ctx context.Context, w http.ResponseWriter, r *http.Request, key string, value any) error {
	session, err := m.Ensure(ctx, w, r)
	if err != nil {
		return err
	}
	session.Set(key, value)
	return m.store.Update(ctx, session)
}

func (m *Manager) GetValue(ctx context.Context, r *http.Request, key string) (any, bool) {
	session, err := m.Get(ctx, r)
	if err != nil {
		return nil, false
	}
	return session.Get(key)
}

// Refresh extends the session expiry within its maximum lifetime.
func (m *Manager) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	session, err := m.Get(ctx, r)
	if err != nil {
		return err
	}

	idle, maxLifetime := m.config.Timeouts(session.IsAuthenticated())
	session.ExpiresAt = calculateExpiry(session.CreatedAt, time.Now(), idle, maxLifetime)
	session.Touch()
	if err := m.store.Update(ctx, session); err != nil {
		return err
	}
	return m.transport.SetToken(w, session.Token, idle)
}

// Close stops the activity worker after flushing queued updates.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		<-m.workerDone
	})
	return nil
}

func (m *Manager) create(ctx context.Context, r *http.Request, userID string, values map[string]any) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	var fingerprint string
	if m.fingerprint != nil {
		fingerprint = m.fingerprint(r)
	}

	now := time.Now()
	idle, maxLifetime := m.config.Timeouts(userID != "")
	session := NewSession(token, userID, fingerprint, calculateExpiry(now, now, idle, maxLifetime).Sub(now))
	session.SetAll(values)

	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (m *Manager) validate(session *Session, r *http.Request) error {
	if session.IsExpired() {
		return ErrSessionExpired
	}
	if m.fingerprint != nil && !session.ValidateFingerprint(m.fingerprint(r)) {
		return ErrInvalidSession
	}
	return nil
}

func (m *Manager) queueActivity(token string) {
	select {
	case m.activity <- activityUpdate{token: token, at: time.Now()}:
	default:
		// full: drop, the next request retries
	}
}

func (m *Manager) activityWorker() {
	defer close(m.workerDone)
	for {
		select {
		case u := <-m.activity:
			_ = m.store.UpdateActivity(context.Background(), u.token, u.at)
		case <-m.done:
			for {
				select {
				case u := <-m.activity:
					_ = m.store.UpdateActivity(context.Background(), u.token, u.at)
				default:
					return
				}
			}
		}
	}
}

// calculateExpiry returns the earlier of the idle and absolute deadlines.
func calculateExpiry(createdAt, now time.Time, idle, maxLifetime time.Duration) time.Time {
	idleExpiry := now.Add(idle)
	maxExpiry := createdAt.Add(maxLifetime)
	if maxExpiry.Before(idleExpiry) {
		return maxExpiry
	}
	return idleExpiry
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
