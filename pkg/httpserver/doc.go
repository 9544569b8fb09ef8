// Package httpserver runs the web application with graceful shutdown and
// health probes.
//
//	srv := httpserver.NewFromConfig(cfg,
//		httpserver.WithLogger(log),
//		httpserver.WithStopHook(func(ctx context.Context, log *slog.Logger) { _ = sessions.Close() }),
//	)
//	if err := srv.Run(ctx, router); err != nil {
//		return err
//	}
//
// Run returns when ctx is cancelled or the process receives SIGINT/SIGTERM.
// Start failures wrap ErrStart and shutdown failures wrap ErrShutdown.
//
// LivenessHandler and ReadinessHandler back the /health/live and
// /health/ready endpoints.
package httpserver
