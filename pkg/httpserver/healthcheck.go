package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/healthkit/pkg/async"
	"github.com/dmitrymomot/healthkit/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(context.Context) error

// LivenessHandler always answers 200 "ALIVE".
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ALIVE"))
	}
}

// ReadinessHandler runs the checks concurrently within timeout and answers
// 200 "READY" or 503 "NOT_READY". Failure details are logged, never returned.
func ReadinessHandler(log *slog.Logger, timeout time.Duration, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		futures := make([]*async.Future[struct{}], 0, len(checks))
		for name, check := range checks {
			futures = append(futures, async.Async(ctx, name, func(ctx context.Context, name string) (struct{}, error) {
				if err := check(ctx); err != nil {
					return struct{}{}, fmt.Errorf("%s: %w", name, err)
				}
				return struct{}{}, nil
			}))
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := async.WaitAll(futures...); err != nil {
			log.WarnContext(ctx, "readiness check failed", logger.Component("health"), logger.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		_, _ = w.Write([]byte("READY"))
	}
}
