package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrNoSeriesCodes is matched by every EmptyResultError.
var ErrNoSeriesCodes = errors.New("no series codes available")

// NetworkError reports a request that could not be completed: connection
// refused, DNS failure, or timeout.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request failed because a deadline elapsed.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// UpstreamError reports a non-2xx response from the SDG API.
type UpstreamError struct {
	URL        string
	StatusCode int
	Body       string // truncated response body
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("sdg API error: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("sdg API error: %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// ParseError reports a body that is not valid JSON or does not have the
// expected shape.
type ParseError struct {
	Source string // table name or URL
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.Source, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyResultError reports a metadata pull that yielded no series codes, so
// no observation request can be built.
type EmptyResultError struct {
	Table string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNoSeriesCodes, e.Table)
}

func (e *EmptyResultError) Unwrap() error { return ErrNoSeriesCodes }

// Error kinds used as metric and log labels.
const (
	KindNetwork  = "network"
	KindTimeout  = "timeout"
	KindUpstream = "upstream"
	KindParse    = "parse"
	KindEmpty    = "empty"
	KindCanceled = "canceled"
	KindUnknown  = "unknown"
)

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		netErr      *NetworkError
		upstreamErr *UpstreamError
		parseErr    *ParseError
		emptyErr    *EmptyResultError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			return KindTimeout
		}
		if errors.Is(err, context.Canceled) {
			return KindCanceled
		}
		return KindNetwork
	case errors.As(err, &upstreamErr):
		return KindUpstream
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &emptyErr):
		return KindEmpty
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}
