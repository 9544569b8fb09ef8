package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/healthkit/pkg/logger"
	"github.com/dmitrymomot/healthkit/pkg/requestid"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// AppConfig holds process-wide settings.
type AppConfig struct {
	Name string `env:"APP_NAME" envDefault:"healthkit"`
	Env  string `env:"APP_ENV" envDefault:"development"`
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "healthkit",
		Short: "Admin sign-in bridge between browser sessions and Parse",
		Long: `healthkit signs administrators into a server-rendered web app using
accounts stored in a Parse server, and keeps a CLI client's cached
Parse session token in sync with the route rules of the web client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		createAdminCmd(),
		clientCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg AppConfig, opts ...logger.Option) *slog.Logger {
	return logger.New(append([]logger.Option{
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	}, opts...)...)
}
