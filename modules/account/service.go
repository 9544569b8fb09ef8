package account

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/healthkit/handler"
	"github.com/dmitrymomot/healthkit/pkg/binder"
	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/csrf"
	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/ratelimiter"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

// LoginRequest is bound from the query string (GET) and the form body (POST).
type LoginRequest struct {
	Email       string `form:"email"`
	Password    string `form:"password"`
	RedirectURL string `form:"redirect_url" query:"redirect"`
}

type loginFlash struct {
	Email  string              `json:"email,omitempty"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// Service serves the login page, the login form submission, logout and the
// signed-in landing page.
type Service struct {
	cfg          Config
	flow         *Flow
	authority    *bridge.Authority
	cookies      *cookie.Manager
	csrf         *csrf.Protector
	views        Views
	metrics      *Metrics
	log          *slog.Logger
	errorHandler handler.ErrorHandler
	limiter      ratelimiter.Limiter
	limitKey     ratelimiter.KeyFunc
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(s *Service) { s.errorHandler = h }
}

// WithRateLimiter throttles login submissions. key defaults to the client
// address. Limiter failures let the attempt through.
func WithRateLimiter(limiter ratelimiter.Limiter, key ratelimiter.KeyFunc) Option {
	return func(s *Service) {
		s.limiter = limiter
		s.limitKey = key
	}
}

func NewService(
	cfg Config,
	client Authenticator,
	authority *bridge.Authority,
	cookies *cookie.Manager,
	protector *csrf.Protector,
	views Views,
	opts ...Option,
) *Service {
	s := &Service{
		cfg:       cfg,
		authority: authority,
		cookies:   cookies,
		csrf:      protector,
		views:     views,
		log:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.limitKey == nil {
		s.limitKey = ratelimiter.ByClientIP()
	}
	if s.errorHandler == nil {
		s.errorHandler = handler.NewErrorHandler(s.log, handler.ErrorHandlerConfig{})
	}
	s.flow = NewFlow(cfg, client, authority, s.log)
	return s
}

// Handle returns a router serving the account routes.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	s.Routes(r)
	return r
}

// Routes registers the login, logout and landing routes on r, which must be
// a fresh router or group. The session and authority middleware must run
// before them.
func (s *Service) Routes(r chi.Router) {
	r.Use(s.csrf.Middleware)

	r.With(s.authority.RequireGuest(s.cfg.LandingPath)).Group(func(r chi.Router) {
		r.Get(s.cfg.LoginPath, handler.Wrap(s.loginPage,
			handler.WithBinders(binder.Query()),
			handler.WithErrorHandler(s.errorHandler),
		))
		r.Post(s.cfg.LoginPath, handler.Wrap(s.login,
			handler.WithBinders(binder.Query(), binder.Form()),
			handler.WithErrorHandler(s.errorHandler),
		))
	})
	r.Post(s.cfg.LogoutPath, handler.Wrap(s.logout,
		handler.WithErrorHandler(s.errorHandler),
	))
	r.With(s.authority.RequireAuth(s.cfg.LoginPath)).Get(s.cfg.LandingPath, handler.Wrap(s.dashboard,
		handler.WithErrorHandler(s.errorHandler),
	))
}

func (s *Service) loginPage(ctx handler.Context, req LoginRequest) handler.Response {
	params := LoginPageParams{
		Action:      s.loginURL(req.RedirectURL),
		RedirectURL: handler.SafeRedirectPath(req.RedirectURL, ""),
		CSRFField:   s.csrf.FieldName(),
		CSRFToken:   csrf.Token(ctx),
	}

	var flash loginFlash
	if err := s.cookies.GetFlash(ctx.ResponseWriter(), ctx.Request(), flashKey, &flash); err == nil {
		params.Email = flash.Email
		params.Errors = handler.ValidationError(flash.Errors)
	} else if !errors.Is(err, cookie.ErrCookieNotFound) {
		s.log.DebugContext(ctx, "discarding unreadable login flash", logger.Component("account"), logger.Error(err))
	}

	return handler.Templ(s.views.LoginPage(params))
}

func (s *Service) login(ctx handler.Context, req LoginRequest) handler.Response {
	key, out, throttled := s.throttle(ctx)
	if !throttled {
		out = s.flow.Run(ctx, ctx.ResponseWriter(), ctx.Request(), req)
	}
	s.metrics.login(out.Result)

	if out.Established() {
		if key != "" {
			if err := s.limiter.Reset(ctx, key); err != nil {
				s.log.WarnContext(ctx, "reset login throttle", logger.Component("account"), logger.Error(err))
			}
		}
		s.csrf.Regenerate(ctx, ctx.ResponseWriter())
		return handler.Redirect(out.Redirect)
	}

	if err := s.cookies.SetFlash(ctx.ResponseWriter(), flashKey, loginFlash{
		Email:  req.Email,
		Errors: out.Errors,
	}); err != nil {
		s.log.ErrorContext(ctx, "store login flash", logger.Component("account"), logger.Error(err))
	}
	return handler.Redirect(s.loginURL(req.RedirectURL))
}

// throttle takes a token from the caller's bucket. key is empty when no
// limiter applies.
func (s *Service) throttle(ctx handler.Context) (key string, out Outcome, throttled bool) {
	if s.limiter == nil {
		return "", Outcome{}, false
	}
	if key = s.limitKey(ctx.Request()); key == "" {
		return "", Outcome{}, false
	}
	key = "login:" + key

	res, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.log.WarnContext(ctx, "login throttle unavailable", logger.Component("account"), logger.Error(err))
		return "", Outcome{}, false
	}
	if res.Allowed() {
		return key, Outcome{}, false
	}
	s.log.InfoContext(ctx, "login throttled", logger.Component("account"), logger.Duration(res.RetryAfter()))
	return key, Outcome{
		Result: ResultThrottled,
		Err:    ErrTooManyAttempts,
		Errors: handler.FieldError("email", MsgTooManyAttempts),
	}, true
}

func (s *Service) logout(ctx handler.Context, _ struct{}) handler.Response {
	if err := s.authority.Invalidate(ctx, ctx.ResponseWriter(), ctx.Request()); err != nil {
		s.log.ErrorContext(ctx, "logout", logger.Component("account"), logger.Event("logout"), logger.Error(err))
	}
	s.csrf.Regenerate(ctx, ctx.ResponseWriter())
	s.metrics.logout()
	return handler.Redirect(s.cfg.EntryPath)
}

func (s *Service) dashboard(ctx handler.Context, _ struct{}) handler.Response {
	user := s.authority.CurrentUser(ctx)
	if user == nil {
		return handler.Redirect(s.cfg.LoginPath)
	}
	return handler.Templ(s.views.DashboardPage(DashboardPageParams{
		User:       user,
		LogoutPath: s.cfg.LogoutPath,
		CSRFField:  s.csrf.FieldName(),
		CSRFToken:  csrf.Token(ctx),
	}))
}

// loginURL keeps a valid intended destination across the redirect back to
// the login form.
func (s *Service) loginURL(redirect string) string {
	if target := handler.SafeRedirectPath(redirect, ""); target != "" {
		return s.cfg.LoginPath + "?" + url.Values{"redirect": {target}}.Encode()
	}
	return s.cfg.LoginPath
}
