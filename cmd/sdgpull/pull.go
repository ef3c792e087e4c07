package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/couchcryptid/sdg-data-pull-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func newPullCmd() *cobra.Command {
	var flags pullFlags
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Run one fetch-and-flatten pull and deliver the tables",
		Long: `Runs the pull once: indicator list, flatten, tier filter, series code
extraction, series data for the first code, flatten. Exits non-zero on any
network, upstream, parse, empty-result, or sink error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPull(cmd, &flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func runPull(cmd *cobra.Command, flags *pullFlags) error {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	// One-shot pulls expose no /metrics endpoint.
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, cmd.OutOrStdout(), logger, metrics)
	if err != nil {
		return fmt.Errorf("build sinks: %w", err)
	}
	defer a.Close()

	res, err := a.scheduler.RunOnce(ctx)
	if err != nil {
		logger.Error("pull failed", "error", err, "kind", pipeline.Outcome(err))
		return err
	}

	logger.Info("pull delivered",
		"series_codes", len(res.SeriesCodes),
		"data_url", res.DataURL,
		"tier_rows", res.Tier1.Len(),
	)
	return nil
}
