package unstats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/sdg-data-pull-service/internal/domain"
	"github.com/couchcryptid/sdg-data-pull-service/internal/observability"
)

// Endpoint labels used in logs and metrics.
const (
	EndpointIndicators = "indicators"
	EndpointSeriesData = "series_data"
)

// maxErrorBody caps how much of a failed response is kept in an UpstreamError.
const maxErrorBody = 512

// Client fetches raw JSON documents from the UN SDG API.
type Client struct {
	httpClient  *http.Client
	metadataURL string
	dataURL     string
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates an SDG API client. The timeout bounds each request,
// including reading the body.
func NewClient(metadataURL, dataURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metadataURL: metadataURL,
		dataURL:     dataURL,
		metrics:     metrics,
		logger:      logger,
	}
}

// FetchIndicators returns the indicator list document.
func (c *Client) FetchIndicators(ctx context.Context) ([]byte, error) {
	return c.doRequest(ctx, c.metadataURL, EndpointIndicators)
}

// FetchSeriesData returns the observation document for one series code.
func (c *Client) FetchSeriesData(ctx context.Context, seriesCode string) ([]byte, error) {
	return c.doRequest(ctx, c.SeriesDataURL(seriesCode), EndpointSeriesData)
}

// SeriesDataURL builds the data request URL for a series code,
// e.g. ".../Series/Data?seriesCode=SI_POV_EMP1".
func (c *Client) SeriesDataURL(seriesCode string) string {
	u, err := url.Parse(c.dataURL)
	if err != nil {
		return c.dataURL + "?" + url.Values{"seriesCode": {seriesCode}}.Encode()
	}
	q := u.Query()
	q.Set("seriesCode", seriesCode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) doRequest(ctx context.Context, fullURL, endpoint string) ([]byte, error) {
	start := time.Now()
	body, err := c.get(ctx, fullURL)
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = domain.ErrorKind(err)
	}
	c.metrics.UpstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	c.logger.Debug("sdg request finished",
		"endpoint", endpoint,
		"url", fullURL,
		"outcome", outcome,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return body, err
}

func (c *Client) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.NetworkError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{URL: fullURL, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.NetworkError{URL: fullURL, Err: fmt.Errorf("read body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &domain.ParseError{Source: fullURL, Reason: "response is not valid JSON"}
	}
	return body, nil
}
