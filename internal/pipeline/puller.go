package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher retrieves raw JSON documents from the SDG API.
type Fetcher interface {
	FetchIndicators(ctx context.Context) ([]byte, error)
	FetchSeriesData(ctx context.Context, seriesCode string) ([]byte, error)
	SeriesDataURL(seriesCode string) string
}

// Options controls filtering and flattening policy for a pull.
type Options struct {
	TierFilter          string
	TolerateMissingPath bool
	CodesFromTierFilter bool
}

// Result holds the tables produced by one pull.
type Result struct {
	Metadata     domain.Table
	Tier1        domain.Table
	SeriesCodes  []string
	DataURL      string
	Observations domain.Table
	FetchedAt    time.Time
}

// Tables returns the result tables in delivery order.
func (r Result) Tables() []domain.Table {
	return []domain.Table{r.Metadata, r.Tier1, r.Observations}
}

// Puller runs the fetch-and-flatten procedure.
type Puller struct {
	fetcher Fetcher
	opts    Options
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPuller creates a Puller. A nil clock uses the real clock.
func NewPuller(f Fetcher, opts Options, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Puller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Puller{
		fetcher: f,
		opts:    opts,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Pull fetches the indicator list, flattens and filters it, then fetches and
// flattens the observations of the first series code. Steps run strictly in
// sequence. On error the returned Result holds whatever was built before the
// failing step.
func (p *Puller) Pull(ctx context.Context) (Result, error) {
	res := Result{FetchedAt: p.clock.Now()}

	body, err := p.fetcher.FetchIndicators(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch indicator list: %w", err)
	}

	res.Metadata, err = domain.Flatten(domain.TableIndicatorMetadata, body, domain.MetadataOptions(p.opts.TolerateMissingPath))
	if err != nil {
		return res, fmt.Errorf("flatten indicator list: %w", err)
	}
	p.metrics.RowsFlattened.WithLabelValues(domain.TableIndicatorMetadata).Add(float64(res.Metadata.Len()))

	res.Tier1 = res.Metadata.Filter(domain.TableIndicatorMetadataT1, domain.ColumnTier, p.opts.TierFilter)
	p.metrics.RowsFlattened.WithLabelValues(domain.TableIndicatorMetadataT1).Add(float64(res.Tier1.Len()))

	p.logger.Info("indicator metadata flattened",
		"rows", res.Metadata.Len(),
		"tier", p.opts.TierFilter,
		"tier_rows", res.Tier1.Len(),
	)

	res.SeriesCodes, err = p.seriesCodes(res)
	if err != nil {
		return res, err
	}

	res.DataURL = p.fetcher.SeriesDataURL(res.SeriesCodes[0])
	body, err = p.fetcher.FetchSeriesData(ctx, res.SeriesCodes[0])
	if err != nil {
		return res, fmt.Errorf("fetch series data %s: %w", res.SeriesCodes[0], err)
	}

	res.Observations, err = domain.Flatten(domain.TableSeriesData, body, domain.ObservationOptions(p.opts.TolerateMissingPath))
	if err != nil {
		return res, fmt.Errorf("flatten series data %s: %w", res.SeriesCodes[0], err)
	}
	p.metrics.RowsFlattened.WithLabelValues(domain.TableSeriesData).Add(float64(res.Observations.Len()))

	p.logger.Info("series data flattened",
		"series_code", res.SeriesCodes[0],
		"rows", res.Observations.Len(),
	)
	return res, nil
}

// seriesCodes extracts m_code from the unfiltered metadata table unless
// CodesFromTierFilter is set.
func (p *Puller) seriesCodes(res Result) ([]string, error) {
	source := res.Metadata
	if p.opts.CodesFromTierFilter {
		source = res.Tier1
	}

	codes, err := source.Strings(domain.ColumnSeriesCode)
	if err != nil {
		return nil, fmt.Errorf("extract series codes: %w", err)
	}
	if len(codes) == 0 {
		return codes, &domain.EmptyResultError{Table: source.Name}
	}

	p.logger.Debug("series codes extracted",
		"source_table", source.Name,
		"codes", len(codes),
		"first", codes[0],
	)
	return codes, nil
}
