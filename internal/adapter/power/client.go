// Package power fetches daily point climate data from the NASA POWER API.
package power

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/malaria-risk-etl/internal/domain"
	"github.com/couchcryptid/malaria-risk-etl/internal/observability"
)

const (
	queryDateLayout = "20060102"
	// maxBodyBytes bounds a single-day point response, which is a few KB.
	maxBodyBytes = 1 << 20
)

var errBodyTooLarge = fmt.Errorf("power response exceeds %d bytes", maxBodyBytes)

// Parameters requested for every location, in request order.
var Parameters = []string{domain.ParamTemperature, domain.ParamRelativeHumidity, domain.ParamPrecipitation}

// Client implements domain.ClimateSource using the POWER daily point endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	community  string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a POWER client. timeout bounds every request.
func NewClient(baseURL, community string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		community: community,
		metrics:   metrics,
		logger:    logger,
	}
}

// FetchDaily retrieves one day of climate data for one location. Failures
// are returned as *domain.LocationFetchError.
func (c *Client) FetchDaily(ctx context.Context, lat, lon float64, date time.Time) (domain.ClimateRecord, error) {
	c.metrics.ClimateInFlight.Inc()
	defer c.metrics.ClimateInFlight.Dec()

	start := time.Now()
	rec, err := c.fetch(ctx, lat, lon, date)
	c.metrics.ClimateAPIDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var lfe *domain.LocationFetchError
		if errors.As(err, &lfe) {
			c.metrics.ClimateRequests.WithLabelValues(lfe.Reason).Inc()
		}
		return domain.ClimateRecord{}, err
	}
	c.metrics.ClimateRequests.WithLabelValues("success").Inc()
	return rec, nil
}

func (c *Client) fetch(ctx context.Context, lat, lon float64, date time.Time) (domain.ClimateRecord, error) {
	fail := func(reason string, err error) error {
		return &domain.LocationFetchError{Lat: lat, Lon: lon, Reason: reason, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(lat, lon, date), nil)
	if err != nil {
		return domain.ClimateRecord{}, fail(domain.ReasonNetwork, fmt.Errorf("create request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ClimateRecord{}, fail(domain.ReasonCanceled, err)
		}
		return domain.ClimateRecord{}, fail(domain.ReasonNetwork, fmt.Errorf("power request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ClimateRecord{}, fail(domain.ReasonHTTPStatus,
			fmt.Errorf("power API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		if ctx.Err() != nil {
			return domain.ClimateRecord{}, fail(domain.ReasonCanceled, err)
		}
		return domain.ClimateRecord{}, fail(domain.ReasonNetwork, fmt.Errorf("read response: %w", err))
	}
	if len(body) > maxBodyBytes {
		return domain.ClimateRecord{}, fail(domain.ReasonMalformed, errBodyTooLarge)
	}

	rec, err := ParseDailyCSV(body, lat, lon, date)
	if err != nil {
		return domain.ClimateRecord{}, fail(domain.ReasonMalformed, err)
	}
	if len(rec.Absent) > 0 {
		c.logger.Warn("power response missing parameters",
			"lat", lat, "lon", lon, "absent", rec.Absent)
	}
	return rec, nil
}

func (c *Client) requestURL(lat, lon float64, date time.Time) string {
	day := date.Format(queryDateLayout)
	params := url.Values{
		"parameters": {strings.Join(Parameters, ",")},
		"latitude":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(lon, 'f', -1, 64)},
		"start":      {day},
		"end":        {day},
		"community":  {c.community},
		"format":     {"CSV"},
	}
	return c.baseURL + "?" + params.Encode()
}
