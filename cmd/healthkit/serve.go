package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/healthkit/handler"
	"github.com/dmitrymomot/healthkit/modules/account"
	"github.com/dmitrymomot/healthkit/pkg/clientip"
	"github.com/dmitrymomot/healthkit/pkg/config"
	"github.com/dmitrymomot/healthkit/pkg/cookie"
	"github.com/dmitrymomot/healthkit/pkg/csrf"
	"github.com/dmitrymomot/healthkit/pkg/fingerprint"
	"github.com/dmitrymomot/healthkit/pkg/httpserver"
	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/pkg/ratelimiter"
	"github.com/dmitrymomot/healthkit/pkg/redis"
	"github.com/dmitrymomot/healthkit/pkg/requestid"
	"github.com/dmitrymomot/healthkit/pkg/session"
	"github.com/dmitrymomot/healthkit/svc/bridge"
)

const readinessTimeout = 5 * time.Second

type serveConfig struct {
	App      AppConfig
	Parse    parse.Config
	Cookie   cookie.Config
	Session  session.Config
	Redis    redis.Config
	HTTP     httpserver.Config
	Account  account.Config
	ClientIP clientip.Config
}

func loadServeConfig() (serveConfig, error) {
	var c serveConfig
	err := errors.Join(
		config.Load(&c.App),
		config.Load(&c.Parse),
		config.Load(&c.Cookie),
		config.Load(&c.Session),
		config.Load(&c.Redis),
		config.Load(&c.HTTP),
		config.Load(&c.Account),
		config.Load(&c.ClientIP),
	)
	return c, err
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin web server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg serveConfig) error {
	log := newLogger(cfg.App, logger.WithContextExtractors(clientip.LoggerExtractor()))
	logger.SetAsDefault(log)
	ips := clientip.NewFromConfig(cfg.ClientIP)

	client, err := parse.New(cfg.Parse)
	if err != nil {
		return err
	}
	cookies, err := cookie.NewFromConfig(cfg.Cookie)
	if err != nil {
		return fmt.Errorf("cookie manager: %w", err)
	}

	checks := map[string]httpserver.Check{"parse": client.Ping}
	stores, err := openStores(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer stores.close()

	sessionOpts := []session.Option{
		session.WithStore(stores.sessions),
		session.WithCookieManager(cookies),
	}
	if cfg.Session.BindFingerprint {
		sessionOpts = append(sessionOpts, session.WithFingerprint(fingerprint.New()))
	}
	sessions := session.NewFromConfig(cfg.Session, sessionOpts...)
	defer func() { _ = sessions.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authority := bridge.New(sessions, bridge.WithLogger(log))
	errorHandler := handler.NewErrorHandler(log, handler.ErrorHandlerConfig{})
	accountOpts := []account.Option{
		account.WithLogger(log),
		account.WithMetrics(account.NewMetrics(reg)),
		account.WithErrorHandler(errorHandler),
	}
	if cfg.Account.Throttle.Enabled() {
		limiter, err := ratelimiter.NewBucket(stores.limits, cfg.Account.Throttle)
		if err != nil {
			return fmt.Errorf("login throttle: %w", err)
		}
		accountOpts = append(accountOpts, account.WithRateLimiter(limiter, ratelimiter.ByClientIP()))
	}
	accounts := account.NewService(cfg.Account, client, authority, cookies, csrf.New(cookies), account.DefaultViews(), accountOpts...)

	r := chi.NewRouter()
	r.Use(requestid.Middleware, ips.Middleware)
	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, readinessTimeout, checks))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Group(func(r chi.Router) {
		r.Use(sessions.Middleware, authority.Middleware)
		r.Get("/", handler.Wrap(func(handler.Context, struct{}) handler.Response {
			return handler.Redirect(cfg.Account.LoginPath)
		}))
		r.Group(accounts.Routes)
	})

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(ctx context.Context, log *slog.Logger) {
			log.InfoContext(ctx, "session store ready", slog.String("store", cfg.Session.Store))
		}),
	)
	return srv.Run(ctx, r)
}

type backends struct {
	sessions session.Store
	limits   ratelimiter.Store
	close    func()
}

// openStores builds the session and rate limit backends selected by
// SESSION_STORE and registers their readiness checks.
func openStores(ctx context.Context, cfg serveConfig, checks map[string]httpserver.Check) (backends, error) {
	switch cfg.Session.Store {
	case "", "memory":
		store := session.NewMemoryStore(cfg.Session.CleanupInterval)
		limits := ratelimiter.NewMemoryStore()
		return backends{
			sessions: store,
			limits:   limits,
			close: func() {
				_ = store.Close()
				limits.Close()
			},
		}, nil
	case "redis":
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return backends{}, fmt.Errorf("session store: %w", err)
		}
		checks["redis"] = redis.Healthcheck(client)
		return backends{
			sessions: session.NewRedisStore(client),
			limits:   ratelimiter.NewRedisStore(client),
			close:    func() { _ = client.Close() },
		}, nil
	default:
		return backends{}, fmt.Errorf("session store: unknown backend %q", cfg.Session.Store)
	}
}
