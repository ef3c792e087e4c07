package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for SDG pulls.
type Metrics struct {
	Pulls            *prometheus.CounterVec // labels: outcome={success,network,timeout,upstream,parse,empty,sink,...}
	PullDuration     prometheus.Histogram
	RowsFlattened    *prometheus.CounterVec // labels: table
	LastSuccess      prometheus.Gauge
	SchedulerRunning prometheus.Gauge

	// Upstream API metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: endpoint={indicators,series_data}, outcome
	UpstreamDuration *prometheus.HistogramVec // labels: endpoint

	// Sink metrics.
	SinkWrites *prometheus.CounterVec // labels: sink, outcome={success,error}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.Pulls,
		m.PullDuration,
		m.RowsFlattened,
		m.LastSuccess,
		m.SchedulerRunning,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.SinkWrites,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Pulls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg_pull",
			Name:      "pulls_total",
			Help:      "Completed fetch-and-flatten runs by outcome.",
		}, []string{"outcome"}),
		PullDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sdg_pull",
			Name:      "pull_duration_seconds",
			Help:      "Duration of a complete pull including sink delivery.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		RowsFlattened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg_pull",
			Name:      "rows_flattened_total",
			Help:      "Rows produced by flattening, by table.",
		}, []string{"table"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdg_pull",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pull.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sdg_pull",
			Name:      "scheduler_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg_pull",
			Name:      "upstream_requests_total",
			Help:      "SDG API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sdg_pull",
			Name:      "upstream_request_duration_seconds",
			Help:      "SDG API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"endpoint"}),
		SinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sdg_pull",
			Name:      "sink_writes_total",
			Help:      "Table writes by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}
