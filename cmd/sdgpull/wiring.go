package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/sdg-data-pull-service/internal/adapter/console"
	kafkaadapter "github.com/couchcryptid/sdg-data-pull-service/internal/adapter/kafka"
	"github.com/couchcryptid/sdg-data-pull-service/internal/adapter/postgres"
	"github.com/couchcryptid/sdg-data-pull-service/internal/adapter/unstats"
	"github.com/couchcryptid/sdg-data-pull-service/internal/config"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/couchcryptid/sdg-data-pull-service/internal/pipeline"
)

// app holds the components shared by the pull and serve commands.
type app struct {
	scheduler *pipeline.Scheduler
	closers   []io.Closer
	logger    *slog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	sinks, closers, err := buildSinks(ctx, cfg, stdout, logger)
	if err != nil {
		return nil, err
	}

	client := unstats.NewClient(cfg.MetadataURL, cfg.DataURL, cfg.HTTPTimeout, metrics, logger)
	puller := pipeline.NewPuller(client, pipeline.Options{
		TierFilter:          cfg.TierFilter,
		TolerateMissingPath: cfg.TolerateMissingPath,
		CodesFromTierFilter: cfg.CodesFromTierFilter,
	}, nil, logger, metrics)
	scheduler := pipeline.NewScheduler(puller, sinks, cfg.PullInterval, cfg.PullMaxBackoff, nil, logger, metrics)

	logger.Info("sdgpull configured",
		"metadata_url", cfg.MetadataURL,
		"data_url", cfg.DataURL,
		"tier", cfg.TierFilter,
		"codes_from_tier_filter", cfg.CodesFromTierFilter,
		"tolerate_missing_path", cfg.TolerateMissingPath,
		"sinks", cfg.Sinks,
	)
	return &app{scheduler: scheduler, closers: closers, logger: logger}, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("sink close error", "error", err)
		}
	}
}

// buildSinks creates the sinks named in cfg.Sinks, in order. On error any
// sink already opened is closed.
func buildSinks(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) ([]pipeline.TableSink, []io.Closer, error) {
	var (
		sinks   []pipeline.TableSink
		closers []io.Closer
	)
	for _, name := range cfg.Sinks {
		switch name {
		case config.SinkConsole:
			sinks = append(sinks, console.NewWriter(stdout, cfg.ConsoleMaxRows, logger))
		case config.SinkKafka:
			w := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
			sinks = append(sinks, w)
			closers = append(closers, w)
		case config.SinkPostgres:
			w, err := postgres.NewWriter(ctx, cfg.PostgresDSN, logger)
			if err != nil {
				closeAll(closers)
				return nil, nil, err
			}
			sinks = append(sinks, w)
			closers = append(closers, w)
		default:
			closeAll(closers)
			return nil, nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	return sinks, closers, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
