package clientsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/healthkit/pkg/async"
	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/parse"
)

// IdentityClient resumes an external session from a stored token.
type IdentityClient interface {
	Become(ctx context.Context, token string) (*parse.User, error)
}

type DecisionKind string

const (
	DecisionProceed         DecisionKind = "proceed"
	DecisionRedirectEntry   DecisionKind = "redirect_entry"
	DecisionRedirectLanding DecisionKind = "redirect_landing"
	DecisionFault           DecisionKind = "fault"
)

// Decision tells the navigation pipeline whether to continue to the target
// or go to Redirect instead.
type Decision struct {
	Kind     DecisionKind
	Redirect string
	// Err is set for DecisionFault.
	Err error
}

func (d Decision) Proceed() bool {
	return d.Kind == DecisionProceed
}

// Gate reconciles the cached token with the external session state before
// each navigation and enforces route requirements. Safe for concurrent use.
type Gate struct {
	cache         TokenCache
	client        IdentityClient
	routes        *Routes
	state         *State
	entryPath     string
	landingPath   string
	resumeTimeout time.Duration
	awaitResume   bool
	log           *slog.Logger
	metrics       *Metrics
}

type GateOption func(*Gate)

// WithState shares the current-user state with a Client.
func WithState(s *State) GateOption {
	return func(g *Gate) {
		if s != nil {
			g.state = s
		}
	}
}

func WithResumeTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.resumeTimeout = d
		}
	}
}

// WithAwaitResume controls whether the decision waits for the background
// resume. When false the decision uses whatever state is present.
func WithAwaitResume(wait bool) GateOption {
	return func(g *Gate) { g.awaitResume = wait }
}

func WithEntryPath(p string) GateOption {
	return func(g *Gate) {
		if p != "" {
			g.entryPath = p
		}
	}
}

func WithLandingPath(p string) GateOption {
	return func(g *Gate) {
		if p != "" {
			g.landingPath = p
		}
	}
}

func WithLogger(log *slog.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// NewGate panics without a cache or client. A nil routes table lets every
// navigation through.
func NewGate(cache TokenCache, client IdentityClient, routes *Routes, opts ...GateOption) *Gate {
	if cache == nil {
		panic("clientsync: token cache is required")
	}
	if client == nil {
		panic("clientsync: identity client is required")
	}
	g := &Gate{
		cache:         cache,
		client:        client,
		routes:        routes,
		state:         NewState(),
		entryPath:     "/",
		landingPath:   "/dashboard",
		resumeTimeout: 5 * time.Second,
		awaitResume:   true,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With(logger.Component("clientsync"))
	return g
}

// State returns the current-user state the gate decides on.
func (g *Gate) State() *State {
	return g.state
}

// BeforeNavigate runs before every route transition. It never returns an
// unguarded proceed on failure: faults redirect to the entry route.
func (g *Gate) BeforeNavigate(ctx context.Context, target string) (d Decision) {
	defer func() {
		if r := recover(); r != nil {
			d = g.fault(ctx, target, fmt.Errorf("%w: panic: %v", ErrNavigationFault, r))
		}
		g.metrics.decision(d.Kind)
	}()

	resume, known, err := g.startResume(ctx)
	if err != nil {
		return g.fault(ctx, target, errors.Join(ErrNavigationFault, err))
	}
	if resume != nil && g.awaitResume && !known {
		if _, err := resume.AwaitWithTimeout(g.resumeTimeout); errors.Is(err, async.ErrTimeout) {
			g.log.WarnContext(ctx, "session resume still pending, deciding with current state",
				logger.Route(target), logger.Duration(g.resumeTimeout))
		}
	}

	route, ok := g.routes.Match(target)
	if !ok {
		return Decision{Kind: DecisionProceed}
	}
	user := g.state.Current()
	switch {
	case route.RequiresAuth && user == nil:
		return Decision{Kind: DecisionRedirectEntry, Redirect: g.entryPath}
	case route.RequiresGuest && user != nil:
		return Decision{Kind: DecisionRedirectLanding, Redirect: g.landingPath}
	}
	return Decision{Kind: DecisionProceed}
}

// startResume issues the resume call for the cached token, if any. The call
// outlives ctx cancellation so its result is still applied. known reports
// that the state already belongs to the cached token; a failed resume then
// only affects later navigations.
func (g *Gate) startResume(ctx context.Context) (f *async.Future[*parse.User], known bool, err error) {
	token, err := g.cache.Get(ctx)
	if errors.Is(err, ErrNoToken) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if user := g.state.Current(); user != nil && user.SessionToken == token {
		known = true
	}
	return async.Async(context.WithoutCancel(ctx), token, g.resume), known, nil
}

func (g *Gate) resume(ctx context.Context, token string) (*parse.User, error) {
	user, err := g.become(ctx, token)
	if err == nil && user == nil {
		err = parse.ErrInvalidSessionToken
	}
	if err != nil {
		err = errors.Join(ErrStaleToken, err)
		g.discard(ctx, token, err)
		return nil, err
	}

	// A logout or a new login may have replaced the token meanwhile.
	if current, cerr := g.cache.Get(ctx); cerr != nil || current != token {
		return user, nil
	}
	resumed := *user
	resumed.SessionToken = token
	g.state.Set(&resumed)
	return &resumed, nil
}

func (g *Gate) become(ctx context.Context, token string) (user *parse.User, err error) {
	defer func() {
		if r := recover(); r != nil {
			user, err = nil, fmt.Errorf("%w: %v", async.ErrPanic, r)
		}
	}()
	return g.client.Become(ctx, token)
}

func (g *Gate) discard(ctx context.Context, token string, cause error) {
	removed, err := g.cache.CompareAndDelete(ctx, token)
	if err != nil {
		g.log.ErrorContext(ctx, "discard stale session token", logger.Error(err))
	}
	g.state.ClearIf(token)
	if removed {
		g.metrics.staleToken()
	}
	g.log.DebugContext(ctx, "cached session token discarded", logger.Error(cause))
}

func (g *Gate) fault(ctx context.Context, target string, err error) Decision {
	g.log.ErrorContext(ctx, "navigation guard failed", logger.Route(target), logger.Error(err))
	return Decision{Kind: DecisionFault, Redirect: g.entryPath, Err: err}
}
