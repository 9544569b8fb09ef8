package ratelimiter

import "time"

// Result describes the bucket after a check.
type Result struct {
	Limit int
	// Remaining is negative when the request was denied.
	Remaining int
	// ResetAt is when the next tokens are added.
	ResetAt time.Time
}

func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter is zero for allowed requests.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(time.Until(r.ResetAt), 0)
}

// Config describes a token bucket. Embed it with an envPrefix to configure
// a specific limiter.
type Config struct {
	Capacity       int           `env:"RATE_CAPACITY" envDefault:"5"`
	RefillRate     int           `env:"RATE_REFILL" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_INTERVAL" envDefault:"1m"`
}

// Enabled reports whether the config describes a usable limiter.
func (c Config) Enabled() bool {
	return c.validate() == nil
}
