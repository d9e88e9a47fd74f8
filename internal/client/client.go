package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherkit-gateway/internal/models"
	"github.com/kjstillabower/weatherkit-gateway/internal/observability"
	"github.com/kjstillabower/weatherkit-gateway/internal/token"
)

// DefaultBaseURL is the WeatherKit REST API root.
const DefaultBaseURL = "https://weatherkit.apple.com/api/v1"

// Defaults applied when a caller leaves the value empty.
const (
	DefaultLanguage = "en"
	DefaultCountry  = "US"
	DefaultTimeout  = 10 * time.Second
)

const (
	endpointAvailability = "availability"
	endpointWeather      = "weather"
	endpointAlert        = "weather_alert"

	maxBodyBytes = 10 << 20
)

// WeatherClient is the set of WeatherKit operations the gateway depends on.
type WeatherClient interface {
	Availability(ctx context.Context, lat, lon float64, country string) (json.RawMessage, error)
	Weather(ctx context.Context, lat, lon float64, opts WeatherOptions) (models.WeatherResponse, error)
	WeatherAlert(ctx context.Context, id, language string) (json.RawMessage, error)
	ValidateCredentials(ctx context.Context) error
}

// TokenSource hands out bearer tokens. *token.Signer satisfies it.
type TokenSource interface {
	Token() (string, error)
}

// ErrNotImplemented is returned by operations with no upstream contract yet.
var ErrNotImplemented = errors.New("not implemented")

// HTTPError is returned for any non-2xx response. It is never retried.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("weatherkit %s: HTTP %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("weatherkit %s: HTTP %d: %s", e.Endpoint, e.StatusCode, body)
}

// NetworkError wraps transport failures (DNS, connect, timeout, truncated body).
type NetworkError struct {
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("weatherkit %s: network: %v", e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline rather than a connection problem.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// WeatherOptions selects what a Weather call returns. Empty fields take
// defaults: Language "en", DataSets [current_weather]. Bounds are ISO 8601
// timestamps sent only when non-empty.
type WeatherOptions struct {
	DataSets    []DataSet
	Language    string
	DailyStart  string
	DailyEnd    string
	HourlyStart string
	HourlyEnd   string
}

// WeatherKitClient performs authenticated GET requests against WeatherKit.
// Safe for concurrent use; one request per call, no retries.
type WeatherKitClient struct {
	tokens  TokenSource
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewWeatherKitClient returns a client signing every request with tokens.
// Empty baseURL means DefaultBaseURL; non-positive timeout means DefaultTimeout.
func NewWeatherKitClient(tokens TokenSource, baseURL string, timeout time.Duration) (*WeatherKitClient, error) {
	if tokens == nil {
		return nil, fmt.Errorf("%w: token source is required", token.ErrInvalidCredential)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &WeatherKitClient{
		tokens:  tokens,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Availability returns the data sets available at a coordinate, as the raw
// JSON body. Empty country means "US".
func (c *WeatherKitClient) Availability(ctx context.Context, lat, lon float64, country string) (json.RawMessage, error) {
	body, err := c.get(ctx, endpointAvailability, availabilityPath(lat, lon, country))
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		err := fmt.Errorf("parse availability response: invalid JSON")
		c.recordError(endpointAvailability, err)
		return nil, err
	}
	return json.RawMessage(body), nil
}

// Weather fetches the requested data sets for a coordinate.
func (c *WeatherKitClient) Weather(ctx context.Context, lat, lon float64, opts WeatherOptions) (models.WeatherResponse, error) {
	body, err := c.get(ctx, endpointWeather, weatherPath(lat, lon, opts))
	if err != nil {
		return models.WeatherResponse{}, err
	}
	resp, err := models.DecodeWeatherResponse(body)
	if err != nil {
		c.recordError(endpointWeather, err)
		return models.WeatherResponse{}, err
	}
	return resp, nil
}

// WeatherAlert always returns ErrNotImplemented without contacting WeatherKit;
// the alert-detail endpoint has no agreed request shape yet.
func (c *WeatherKitClient) WeatherAlert(ctx context.Context, id, language string) (json.RawMessage, error) {
	if language == "" {
		language = DefaultLanguage
	}
	observability.LoggerFromContext(ctx).Debug("weather alert lookup not implemented",
		zap.String("alert_id", id), zap.String("language", language))
	observability.WeatherKitErrorsTotal.WithLabelValues(endpointAlert, string(ErrorCategoryNotImplemented)).Inc()
	return nil, fmt.Errorf("weather alert %q: %w", id, ErrNotImplemented)
}

// ValidateCredentials mints one token locally. No network call is made.
func (c *WeatherKitClient) ValidateCredentials(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.tokens.Token(); err != nil {
		return fmt.Errorf("validate credentials: %w", err)
	}
	return nil
}

// get signs and issues one GET to baseURL+path and returns the body of a 2xx response.
func (c *WeatherKitClient) get(ctx context.Context, endpoint, path string) ([]byte, error) {
	logger := observability.LoggerFromContext(ctx)

	bearer, err := c.tokens.Token()
	if err != nil {
		c.recordError(endpoint, err)
		return nil, fmt.Errorf("sign %s request: %w", endpoint, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.recordError(endpoint, err)
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		observeCall(endpoint, "error", start)
		netErr := &NetworkError{Endpoint: endpoint, Err: err}
		c.recordError(endpoint, netErr)
		logger.Debug("weatherkit request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return nil, netErr
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observeCall(endpoint, status, start)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		netErr := &NetworkError{Endpoint: endpoint, Err: fmt.Errorf("read response body: %w", err)}
		c.recordError(endpoint, netErr)
		return nil, netErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: body}
		c.recordError(endpoint, httpErr)
		logger.Debug("weatherkit non-success status",
			zap.String("endpoint", endpoint), zap.Int("status", resp.StatusCode))
		return nil, httpErr
	}

	logger.Debug("weatherkit request served",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return body, nil
}

func (c *WeatherKitClient) recordError(endpoint string, err error) {
	observability.WeatherKitErrorsTotal.WithLabelValues(endpoint, string(CategorizeError(err))).Inc()
}

func observeCall(endpoint, status string, start time.Time) {
	observability.WeatherKitCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.WeatherKitDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
}

// formatCoordinate renders the shortest decimal form (-122.0090 -> -122.009).
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func availabilityPath(lat, lon float64, country string) string {
	if country == "" {
		country = DefaultCountry
	}
	return "/availability/" + formatCoordinate(lat) + "/" + formatCoordinate(lon) +
		"?country=" + url.QueryEscape(country)
}

func weatherPath(lat, lon float64, opts WeatherOptions) string {
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	return "/weather/" + url.PathEscape(language) + "/" + formatCoordinate(lat) + "/" + formatCoordinate(lon) +
		"?" + weatherQuery(opts)
}

// weatherQuery builds dataSets followed by the optional bounds in fixed order.
// The comma separator is left unescaped.
func weatherQuery(opts WeatherOptions) string {
	sets := opts.DataSets
	if len(sets) == 0 {
		sets = []DataSet{DataSetCurrentWeather}
	}
	params := []string{"dataSets=" + strings.Join(WireNames(sets), ",")}

	bounds := []struct {
		key   string
		value string
	}{
		{"dailyStart", opts.DailyStart},
		{"dailyEnd", opts.DailyEnd},
		{"hourlyStart", opts.HourlyStart},
		{"hourlyEnd", opts.HourlyEnd},
	}
	for _, b := range bounds {
		if b.value != "" {
			params = append(params, b.key+"="+url.QueryEscape(b.value))
		}
	}
	return strings.Join(params, "&")
}

// statusLabel buckets an HTTP status for metric labels.
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
