package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
)

// KindSink labels pulls that fetched successfully but failed delivery.
const KindSink = "sink"

// TableSink receives the tables of a finished pull.
type TableSink interface {
	Name() string
	WriteTable(ctx context.Context, table domain.Table, pulledAt time.Time) error
}

// SinkError reports a table that could not be written to a sink.
type SinkError struct {
	Sink  string
	Table string
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: table %s: %v", e.Sink, e.Table, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Outcome returns the metric and log label for a pull result: "success",
// "sink" for delivery failures, or the domain error kind.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	var sinkErr *SinkError
	if errors.As(err, &sinkErr) {
		return KindSink
	}
	return domain.ErrorKind(err)
}
