package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/sdg-data-pull-service/internal/adapter/http"
	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockScheduler struct {
	err    error
	status *pipeline.Status
}

func (m *mockScheduler) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockScheduler) LastStatus() (pipeline.Status, bool) {
	if m.status == nil {
		return pipeline.Status{}, false
	}
	return *m.status, true
}

func newTestServer(m *mockScheduler) *httpadapter.Server {
	return httpadapter.NewServer(":0", m, m, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(&mockScheduler{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(&mockScheduler{}), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(&mockScheduler{err: fmt.Errorf("no pull has completed yet")}), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no pull has completed yet", body["error"])
}

func TestStatusBeforeFirstPull(t *testing.T) {
	rec := get(t, newTestServer(&mockScheduler{}), "/status")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no pull yet", decode(t, rec)["status"])
}

func TestStatusReportsLastPull(t *testing.T) {
	st := &pipeline.Status{
		At:         time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC),
		Outcome:    domain.KindUpstream,
		Error:      "fetch indicator list: sdg API error: status 503",
		SeriesCode: "",
		Rows:       map[string]int{domain.TableIndicatorMetadata: 0},
	}
	rec := get(t, newTestServer(&mockScheduler{status: st}), "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decode(t, rec)
	assert.Equal(t, "upstream", body["outcome"])
	assert.Equal(t, "2026-10-18T06:00:00Z", body["at"])
	assert.NotContains(t, body, "series_code")
	assert.Equal(t, map[string]any{"indicator_metadata": float64(0)}, body["rows"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(&mockScheduler{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
