package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/session"
)

// Authority answers "who is the current user" from the framework session.
// It never contacts the external service: the identity stored at login is
// trusted until the session ends.
type Authority struct {
	sessions *session.Manager
	log      *slog.Logger
}

type Option func(*Authority)

func WithLogger(log *slog.Logger) Option {
	return func(a *Authority) {
		if log != nil {
			a.log = log
		}
	}
}

func New(sessions *session.Manager, opts ...Option) *Authority {
	a := &Authority{sessions: sessions, log: logger.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// requestState memoizes the identity for one request.
type requestState struct {
	once     sync.Once
	mu       sync.RWMutex
	load     func() *session.Session
	token    string
	identity *Identity
}

func (s *requestState) get() (string, *Identity) {
	s.once.Do(func() {
		token, identity := resolve(s.load())
		s.mu.Lock()
		s.token, s.identity = token, identity
		s.mu.Unlock()
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.identity
}

func (s *requestState) set(token string, identity *Identity) {
	s.once.Do(func() {})
	s.mu.Lock()
	s.token, s.identity = token, identity
	s.mu.Unlock()
}

type stateContextKey struct{}

// Middleware installs the per-request identity memo. The session is loaded
// lazily on the first identity lookup.
func (a *Authority) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state := &requestState{load: func() *session.Session {
			if sess, ok := session.FromContext(ctx); ok {
				return sess
			}
			sess, err := a.sessions.Get(ctx, r)
			if err != nil {
				if !errors.Is(err, session.ErrSessionNotFound) {
					a.log.DebugContext(ctx, "session unavailable", logger.Component("bridge"), logger.Error(err))
				}
				return nil
			}
			return sess
		}}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, stateContextKey{}, state)))
	})
}

func (a *Authority) current(ctx context.Context) (string, *Identity) {
	if state, ok := ctx.Value(stateContextKey{}).(*requestState); ok {
		return state.get()
	}
	sess, _ := session.FromContext(ctx)
	return resolve(sess)
}

// IsAuthenticated reports whether the request session holds both the external
// token and a usable user record.
func (a *Authority) IsAuthenticated(ctx context.Context) bool {
	_, identity := a.current(ctx)
	return identity != nil
}

// CurrentUser returns the signed-in identity or nil.
func (a *Authority) CurrentUser(ctx context.Context) *Identity {
	_, identity := a.current(ctx)
	return identity
}

// SessionToken returns the external session token of the signed-in user.
func (a *Authority) SessionToken(ctx context.Context) string {
	token, identity := a.current(ctx)
	if identity == nil {
		return ""
	}
	return token
}

// Establish stores token and user in the framework session in one write,
// rotating the session token, and makes the identity current for the rest of
// the request.
func (a *Authority) Establish(ctx context.Context, w http.ResponseWriter, r *http.Request, token string, user parse.User) (*session.Session, error) {
	identity := NewIdentity(user)
	if token == "" || identity == nil {
		return nil, ErrSessionInconsistent
	}

	sess, err := a.sessions.Authenticate(ctx, w, r, identity.ID(), map[string]any{
		KeySessionToken: token,
		KeyUser:         user.WithoutToken(),
	})
	if err != nil {
		return nil, fmt.Errorf("establish session: %w", err)
	}

	if state, ok := ctx.Value(stateContextKey{}).(*requestState); ok {
		state.set(token, identity)
	}
	return sess, nil
}

// Verify re-reads sess from the store and checks that both keys survived.
func (a *Authority) Verify(ctx context.Context, sess *session.Session) error {
	if sess == nil {
		return ErrSessionInconsistent
	}
	stored, err := a.sessions.Load(ctx, sess.Token)
	if err != nil {
		return errors.Join(ErrSessionInconsistent, err)
	}
	if _, identity := resolve(stored); identity == nil {
		return ErrSessionInconsistent
	}
	return nil
}

// Discard removes a session returned by Establish that must not survive,
// even when the request cookie still carries the pre-rotation token.
func (a *Authority) Discard(ctx context.Context, w http.ResponseWriter, sess *session.Session) error {
	if state, ok := ctx.Value(stateContextKey{}).(*requestState); ok {
		state.set("", nil)
	}
	if sess == nil {
		return nil
	}
	if err := a.sessions.Revoke(ctx, w, sess.Token); err != nil {
		return fmt.Errorf("discard session: %w", err)
	}
	return nil
}

// Invalidate ends the framework session. The external token is not revoked.
// Calling it without a session is not an error.
func (a *Authority) Invalidate(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if state, ok := ctx.Value(stateContextKey{}).(*requestState); ok {
		state.set("", nil)
	}
	if err := a.sessions.Destroy(ctx, w, r); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return fmt.Errorf("invalidate session: %w", err)
	}
	return nil
}
