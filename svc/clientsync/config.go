package clientsync

import (
	"os"
	"path/filepath"
	"time"
)

// Config configures the client side of the bridge.
type Config struct {
	TokenFile     string        `env:"CLIENT_TOKEN_FILE"`
	RoutesFile    string        `env:"CLIENT_ROUTES_FILE"`
	ResumeTimeout time.Duration `env:"CLIENT_RESUME_TIMEOUT" envDefault:"5s"`
	AwaitResume   bool          `env:"CLIENT_AWAIT_RESUME" envDefault:"true"`
	EntryPath     string        `env:"CLIENT_ENTRY_PATH" envDefault:"/"`
	LandingPath   string        `env:"CLIENT_LANDING_PATH" envDefault:"/dashboard"`
}

func DefaultConfig() Config {
	return Config{
		ResumeTimeout: 5 * time.Second,
		AwaitResume:   true,
		EntryPath:     "/",
		LandingPath:   "/dashboard",
	}
}

// TokenFilePath returns TokenFile or the per-user default location.
func (c Config) TokenFilePath() (string, error) {
	if c.TokenFile != "" {
		return c.TokenFile, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "healthkit", "session_token"), nil
}

// GateOptions converts the config into gate options.
func (c Config) GateOptions() []GateOption {
	return []GateOption{
		WithResumeTimeout(c.ResumeTimeout),
		WithAwaitResume(c.AwaitResume),
		WithEntryPath(c.EntryPath),
		WithLandingPath(c.LandingPath),
	}
}
