package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const initialBackoff = 200 * time.Millisecond

// Scheduler runs pulls and hands their tables to the configured sinks.
type Scheduler struct {
	puller     *Puller
	sinks      []TableSink
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	ready      atomic.Bool
	last       atomic.Pointer[Status]
	interval   time.Duration
	maxBackoff time.Duration
}

// Status summarizes the most recent pull attempt.
type Status struct {
	At         time.Time      `json:"at"`
	Outcome    string         `json:"outcome"`
	Error      string         `json:"error,omitempty"`
	SeriesCode string         `json:"series_code,omitempty"`
	Rows       map[string]int `json:"rows,omitempty"`
}

// NewScheduler creates a Scheduler. A nil clock uses the real clock.
func NewScheduler(p *Puller, sinks []TableSink, interval, maxBackoff time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		puller:     p,
		sinks:      sinks,
		logger:     logger,
		metrics:    metrics,
		clock:      clock,
		interval:   interval,
		maxBackoff: maxBackoff,
	}
}

// CheckReadiness returns nil once a pull has been fetched and delivered,
// or an error describing why the service is not yet ready.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no pull has completed yet")
	}
	return nil
}

// RunOnce performs one pull and delivers every table to every sink. Sink
// failures do not stop delivery to the remaining sinks; they are joined into
// the returned error.
func (s *Scheduler) RunOnce(ctx context.Context) (Result, error) {
	start := s.clock.Now()

	res, err := s.puller.Pull(ctx)
	if err == nil {
		err = s.deliver(ctx, res)
	}

	label := Outcome(err)
	s.metrics.Pulls.WithLabelValues(label).Inc()
	s.metrics.PullDuration.Observe(s.clock.Since(start).Seconds())
	s.last.Store(newStatus(res, label, err))
	if err != nil {
		return res, err
	}

	s.metrics.LastSuccess.Set(float64(res.FetchedAt.Unix()))
	s.ready.Store(true)
	s.logger.Info("pull complete",
		"series_code", res.SeriesCodes[0],
		"metadata_rows", res.Metadata.Len(),
		"observation_rows", res.Observations.Len(),
		"duration", s.clock.Since(start),
	)
	return res, nil
}

// Run pulls immediately and then once per interval until the context is
// cancelled. A failed pull is retried with exponential backoff, never waiting
// longer than the interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "sinks", len(s.sinks))
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	backoff := initialBackoff
	for {
		_, err := s.RunOnce(ctx)
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}

		wait := s.interval
		if err != nil {
			wait = min(backoff, s.interval)
			s.logger.Error("pull failed", "error", err, "kind", Outcome(err), "retry_in", wait)
			backoff = nextBackoff(backoff, s.maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !s.sleep(ctx, wait) {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// LastStatus returns the status of the most recent pull, if any has run.
func (s *Scheduler) LastStatus() (Status, bool) {
	st := s.last.Load()
	if st == nil {
		return Status{}, false
	}
	return *st, true
}

func newStatus(res Result, label string, err error) *Status {
	st := &Status{At: res.FetchedAt, Outcome: label}
	if err != nil {
		st.Error = err.Error()
	}
	if len(res.SeriesCodes) > 0 {
		st.SeriesCode = res.SeriesCodes[0]
	}
	st.Rows = make(map[string]int, 3)
	for _, t := range res.Tables() {
		if t.Name != "" {
			st.Rows[t.Name] = t.Len()
		}
	}
	return st
}

func (s *Scheduler) deliver(ctx context.Context, res Result) error {
	var errs []error
	for _, sink := range s.sinks {
		for _, table := range res.Tables() {
			if err := sink.WriteTable(ctx, table, res.FetchedAt); err != nil {
				s.metrics.SinkWrites.WithLabelValues(sink.Name(), "error").Inc()
				s.logger.Warn("sink write failed", "sink", sink.Name(), "table", table.Name, "error", err)
				errs = append(errs, &SinkError{Sink: sink.Name(), Table: table.Name, Err: err})
				continue
			}
			s.metrics.SinkWrites.WithLabelValues(sink.Name(), "success").Inc()
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := s.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
