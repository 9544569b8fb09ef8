package account

import (
	"time"

	"github.com/dmitrymomot/healthkit/pkg/ratelimiter"
)

// Config holds the login flow settings.
type Config struct {
	// RequiredRole is the role a user must carry to sign in.
	RequiredRole string `env:"ACCOUNT_REQUIRED_ROLE" envDefault:"admin"`
	LoginPath    string `env:"ACCOUNT_LOGIN_PATH" envDefault:"/login"`
	LogoutPath   string `env:"ACCOUNT_LOGOUT_PATH" envDefault:"/logout"`
	// LandingPath is where users go after login when no intended URL is known.
	LandingPath string `env:"ACCOUNT_LANDING_PATH" envDefault:"/dashboard"`
	// EntryPath is where users go after logout.
	EntryPath string `env:"ACCOUNT_ENTRY_PATH" envDefault:"/"`
	// Throttle limits login submissions per client address.
	Throttle ratelimiter.Config `envPrefix:"ACCOUNT_LOGIN_"`
}

func DefaultConfig() Config {
	return Config{
		RequiredRole: "admin",
		LoginPath:    "/login",
		LogoutPath:   "/logout",
		LandingPath:  "/dashboard",
		EntryPath:    "/",
		Throttle: ratelimiter.Config{
			Capacity:       5,
			RefillRate:     1,
			RefillInterval: time.Minute,
		},
	}
}
