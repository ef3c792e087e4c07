package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/sdg-data-pull-service/internal/adapter/http"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var flags pullFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Pull on an interval and serve health, status, and metrics endpoints",
		Long: `Runs a pull immediately and then every PULL_INTERVAL, retrying failed pulls
with exponential backoff capped at PULL_MAX_BACKOFF. Serves /healthz, /readyz,
/status, and /metrics on HTTP_ADDR until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, flags *pullFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.OutOrStdout(), logger, metrics)
	if err != nil {
		return fmt.Errorf("build sinks: %w", err)
	}
	defer a.Close()

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.scheduler, a.scheduler, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start pull scheduler.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
	return nil
}
