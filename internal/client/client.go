package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// DefaultBaseURL is the Visual Crossing timeline endpoint.
const DefaultBaseURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline"

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 1 << 20

// WeatherClient fetches one day of weather for a city.
type WeatherClient interface {
	FetchDay(ctx context.Context, query models.WeatherQuery) (models.WeatherResult, error)
}

// VisualCrossingClient calls the Visual Crossing timeline API. It makes exactly
// one HTTP request per FetchDay call and never retries.
type VisualCrossingClient struct {
	apiKey  string
	baseURL *url.URL
	client  *http.Client
}

// NewVisualCrossingClient creates a client. An empty apiKey is accepted: every
// FetchDay then fails with ErrAPIKeyMissing without touching the network.
func NewVisualCrossingClient(apiKey, baseURL string, timeout time.Duration) (*VisualCrossingClient, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host required", baseURL)
	}

	return &VisualCrossingClient{
		apiKey:  apiKey,
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// timelineResponse is the subset of the timeline payload the service reads.
// Pointer fields distinguish a missing value from a zero value.
type timelineResponse struct {
	Days []timelineDay `json:"days"`
}

type timelineDay struct {
	Temp       *float64 `json:"temp"`
	Conditions *string  `json:"conditions"`
	Humidity   *float64 `json:"humidity"`
}

// FetchDay requests the timeline for query.Date..query.Date and normalizes days[0].
func (c *VisualCrossingClient) FetchDay(ctx context.Context, query models.WeatherQuery) (models.WeatherResult, error) {
	if c.apiKey == "" {
		return models.WeatherResult{}, ErrAPIKeyMissing
	}

	start := time.Now()
	req, err := c.buildRequest(ctx, query)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherResult{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		// *url.Error embeds the request URL, which carries the API key.
		return models.WeatherResult{}, fmt.Errorf("http request failed: %w", stripURL(err))
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return models.WeatherResult{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.WeatherResult{}, fmt.Errorf("read response body: %w", err)
	}
	return parseTimeline(body, query.City)
}

func (c *VisualCrossingClient) buildRequest(ctx context.Context, query models.WeatherQuery) (*http.Request, error) {
	u := c.baseURL.JoinPath(query.City, query.Date, query.Date)

	params := url.Values{}
	params.Set("unitGroup", "metric")
	params.Set("key", c.apiKey)
	params.Set("contentType", "json")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}
	return req, nil
}

// parseTimeline decodes a timeline body and extracts temp, conditions and humidity
// from the first day. Any missing piece is ErrMalformedResponse.
func parseTimeline(body []byte, city string) (models.WeatherResult, error) {
	var tr timelineResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return models.WeatherResult{}, fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
	}
	if len(tr.Days) == 0 {
		return models.WeatherResult{}, fmt.Errorf("%w: no days in response", ErrMalformedResponse)
	}
	day := tr.Days[0]
	switch {
	case day.Temp == nil:
		return models.WeatherResult{}, fmt.Errorf("%w: days[0].temp missing", ErrMalformedResponse)
	case day.Conditions == nil:
		return models.WeatherResult{}, fmt.Errorf("%w: days[0].conditions missing", ErrMalformedResponse)
	case day.Humidity == nil:
		return models.WeatherResult{}, fmt.Errorf("%w: days[0].humidity missing", ErrMalformedResponse)
	}

	return models.WeatherResult{
		City:        city,
		Temperature: *day.Temp,
		Condition:   *day.Conditions,
		Humidity:    *day.Humidity,
	}, nil
}

func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
