package unstats

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSeriesCode    = "SI_POV_EMP1"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
	indicatorListBody = `[{"goal":"1","target":"1.1","code":"1.1.1","description":"d","tier":"1","series":[{"code":"SI_POV_EMP1"}]}]`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		metadataURL: baseURL + "/v1/sdg/Indicator/List",
		dataURL:     baseURL + "/v1/sdg/Series/Data",
		metrics:     observability.NewMetricsForTesting(),
		logger:      discardLogger(),
	}
}

func TestClient_FetchIndicators_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sdg/Indicator/List", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Equal(t, contentTypeJSON, r.Header.Get("Accept"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(indicatorListBody))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	body, err := c.FetchIndicators(context.Background())
	require.NoError(t, err)

	assert.JSONEq(t, indicatorListBody, string(body))
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues(EndpointIndicators, "success")), 0)
}

func TestClient_FetchSeriesData_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sdg/Series/Data", r.URL.Path)
		assert.Equal(t, testSeriesCode, r.URL.Query().Get("seriesCode"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"data":[{"value":"42","timePeriod":2020}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	body, err := c.FetchSeriesData(context.Background(), testSeriesCode)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"timePeriod":2020`)
}

func TestClient_SeriesDataURL(t *testing.T) {
	c := NewClient(
		"https://unstats.un.org/SDGAPI/v1/sdg/Indicator/List",
		"https://unstats.un.org/SDGAPI/v1/sdg/Series/Data",
		time.Second, observability.NewMetricsForTesting(), discardLogger(),
	)

	assert.Equal(t, "https://unstats.un.org/SDGAPI/v1/sdg/Series/Data?seriesCode=SI_POV_EMP1", c.SeriesDataURL(testSeriesCode))
	assert.Equal(t, "https://unstats.un.org/SDGAPI/v1/sdg/Series/Data?seriesCode=A+B%26C", c.SeriesDataURL("A B&C"))
}

func TestClient_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchIndicators(context.Background())

	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusServiceUnavailable, upstreamErr.StatusCode)
	assert.Contains(t, upstreamErr.Body, "maintenance")
	assert.Contains(t, err.Error(), "503")
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.UpstreamRequests.WithLabelValues(EndpointIndicators, domain.KindUpstream)), 0)
}

func TestClient_UpstreamErrorBodyTruncated(t *testing.T) {
	long := make([]byte, 4096)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(long)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchSeriesData(context.Background(), testSeriesCode)

	var upstreamErr *domain.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Len(t, upstreamErr.Body, maxErrorBody)
}

func TestClient_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, "text/html")
		_, _ = w.Write([]byte(`<html>gateway error</html>`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)

	_, err := c.FetchIndicators(context.Background())
	var parseErr *domain.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, domain.KindParse, domain.ErrorKind(err))

	_, err = c.FetchSeriesData(context.Background(), testSeriesCode)
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Source, "seriesCode="+testSeriesCode)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.FetchIndicators(context.Background())

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
	assert.Equal(t, domain.KindTimeout, domain.ErrorKind(err))
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c := testClient(baseURL, time.Second)
	_, err := c.FetchIndicators(context.Background())

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.False(t, netErr.Timeout())
	assert.Equal(t, domain.KindNetwork, domain.ErrorKind(err))
}

func TestClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient(srv.URL, time.Second)
	_, err := c.FetchIndicators(ctx)

	var netErr *domain.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, context.Canceled)
}
