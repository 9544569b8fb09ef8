package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/healthkit/pkg/config"
	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/parse"
	"github.com/dmitrymomot/healthkit/svc/clientsync"
)

// clientApp is the command-line client: a token cache on disk, the Parse
// client and the navigation gate sharing one current-user state.
type clientApp struct {
	cache   clientsync.TokenCache
	gate    *clientsync.Gate
	session *clientsync.Client
	routes  *clientsync.Routes
	landing string
	out     io.Writer
}

func newClientApp(out io.Writer) (*clientApp, error) {
	var (
		app    AppConfig
		pcfg   parse.Config
		ccfg   clientsync.Config
		loaded = errors.Join(config.Load(&app), config.Load(&pcfg), config.Load(&ccfg))
	)
	if loaded != nil {
		return nil, loaded
	}

	client, err := parse.New(pcfg)
	if err != nil {
		return nil, err
	}
	path, err := ccfg.TokenFilePath()
	if err != nil {
		return nil, fmt.Errorf("token file: %w", err)
	}
	cache, err := clientsync.NewFileCache(path)
	if err != nil {
		return nil, err
	}
	routes, err := clientsync.LoadRoutesFile(ccfg.RoutesFile)
	if err != nil {
		return nil, err
	}

	log := newLogger(app, logger.WithOutput(os.Stderr))
	return buildClientApp(client, cache, routes, ccfg, out,
		clientsync.WithLogger(log),
	), nil
}

type parseClient interface {
	clientsync.Authenticator
	clientsync.IdentityClient
}

func buildClientApp(client parseClient, cache clientsync.TokenCache, routes *clientsync.Routes, cfg clientsync.Config, out io.Writer, opts ...clientsync.GateOption) *clientApp {
	state := clientsync.NewState()
	opts = append(cfg.GateOptions(), append(opts, clientsync.WithState(state))...)
	landing := cfg.LandingPath
	if landing == "" {
		landing = clientsync.DefaultConfig().LandingPath
	}
	return &clientApp{
		cache:   cache,
		gate:    clientsync.NewGate(cache, client, routes, opts...),
		session: clientsync.NewClient(client, cache, state),
		routes:  routes,
		landing: landing,
		out:     out,
	}
}

func (a *clientApp) login(ctx context.Context, email, password string) error {
	user, err := a.session.LogIn(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", user.Email)
	return nil
}

func (a *clientApp) logout(ctx context.Context) error {
	if err := a.session.LogOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func (a *clientApp) navigate(ctx context.Context, target string) error {
	d := a.gate.BeforeNavigate(ctx, target)
	if d.Proceed() {
		fmt.Fprintf(a.out, "proceed %s\n", target)
		return nil
	}
	fmt.Fprintf(a.out, "redirect %s (%s)\n", d.Redirect, d.Kind)
	return nil
}

// status resolves the cached token the same way a navigation would.
func (a *clientApp) status(ctx context.Context) error {
	if _, err := a.cache.Get(ctx); errors.Is(err, clientsync.ErrNoToken) {
		fmt.Fprintln(a.out, "signed out")
		return nil
	}
	d := a.gate.BeforeNavigate(ctx, a.landing)
	if d.Kind == clientsync.DecisionFault {
		return d.Err
	}
	user := a.gate.State().Current()
	if user == nil {
		fmt.Fprintln(a.out, "signed out (cached session expired)")
		return nil
	}
	fmt.Fprintf(a.out, "signed in as %s (role %s)\n", user.Email, user.Role)
	return nil
}

func (a *clientApp) listRoutes() {
	for _, r := range a.routes.All() {
		access := "public"
		switch {
		case r.RequiresAuth:
			access = "auth"
		case r.RequiresGuest:
			access = "guest"
		}
		fmt.Fprintf(a.out, "%-20s %-16s %s\n", r.Path, r.Name, access)
	}
}

func clientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Client session commands backed by a local token cache",
	}

	withApp := func(run func(ctx context.Context, app *clientApp, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			app, err := newClientApp(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return run(cmd.Context(), app, args)
		}
	}

	var email, password string
	login := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the session token",
		RunE: withApp(func(ctx context.Context, app *clientApp, _ []string) error {
			return app.login(ctx, email, password)
		}),
	}
	login.Flags().StringVar(&email, "email", "", "account email")
	login.Flags().StringVar(&password, "password", "", "account password")
	_ = login.MarkFlagRequired("email")
	_ = login.MarkFlagRequired("password")

	cmd.AddCommand(
		login,
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the cached session token",
			RunE: withApp(func(ctx context.Context, app *clientApp, _ []string) error {
				return app.logout(ctx)
			}),
		},
		&cobra.Command{
			Use:   "navigate <path>",
			Short: "Run the navigation guard for a route",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(ctx context.Context, app *clientApp, args []string) error {
				return app.navigate(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show who the cached session belongs to",
			RunE: withApp(func(ctx context.Context, app *clientApp, _ []string) error {
				return app.status(ctx)
			}),
		},
		&cobra.Command{
			Use:   "routes",
			Short: "List the client route table",
			RunE: withApp(func(_ context.Context, app *clientApp, _ []string) error {
				app.listRoutes()
				return nil
			}),
		},
	)
	return cmd
}
