package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/weatherkit-gateway/internal/client"
	"github.com/kjstillabower/weatherkit-gateway/internal/lifecycle"
	"github.com/kjstillabower/weatherkit-gateway/internal/observability"
	"github.com/kjstillabower/weatherkit-gateway/internal/traffic"
	"github.com/kjstillabower/weatherkit-gateway/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
}

// Defaults fill request parameters the caller left empty.
type Defaults struct {
	Language string
	Country  string
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	client           client.WeatherClient
	tracker          *traffic.Tracker
	healthConfig     *HealthConfig
	defaults         Defaults
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker gets a private one.
func NewHandler(
	weatherClient client.WeatherClient,
	tracker *traffic.Tracker,
	healthConfig *HealthConfig,
	defaults Defaults,
	logger *zap.Logger,
) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker(0)
	}
	if defaults.Language == "" {
		defaults.Language = client.DefaultLanguage
	}
	if defaults.Country == "" {
		defaults.Country = client.DefaultCountry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		client:       weatherClient,
		tracker:      tracker,
		healthConfig: healthConfig,
		defaults:     defaults,
		logger:       logger,
	}
}

// GetAvailability handles GET /availability/{lat}/{lon}?country=.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lat, lon, err := validation.ParseCoordinates(vars["lat"], vars["lon"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	country, err := validation.ParseCountry(r.URL.Query().Get("country"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COUNTRY", err.Error())
		return
	}
	if country == "" {
		country = h.defaults.Country
	}

	body, err := h.client.Availability(r.Context(), lat, lon, country)
	if err != nil {
		h.tracker.Record(traffic.Failure)
		writeUpstreamError(w, r, err)
		return
	}
	h.tracker.Record(traffic.Success)
	writeRaw(w, http.StatusOK, body)
}

// GetWeather handles GET /weather/{lat}/{lon} with optional dataSets,
// language, dailyStart, dailyEnd, hourlyStart and hourlyEnd query parameters.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lat, lon, err := validation.ParseCoordinates(vars["lat"], vars["lon"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}
	opts, err := validation.ParseWeatherOptions(r.URL.Query(), h.defaults.Language)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, validationCode(err), err.Error())
		return
	}

	resp, err := h.client.Weather(r.Context(), lat, lon, opts)
	if err != nil {
		h.tracker.Record(traffic.Failure)
		writeUpstreamError(w, r, err)
		return
	}
	h.tracker.Record(traffic.Success)
	writeRaw(w, http.StatusOK, resp.Raw)
}

// GetAlert handles GET /alerts/{id}?language=. WeatherKit alert detail is not
// wired yet, so this answers 501 without contacting upstream.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_ALERT_ID", "alert id is required")
		return
	}
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	if language == "" {
		language = h.defaults.Language
	}

	body, err := h.client.WeatherAlert(r.Context(), id, language)
	if err != nil {
		if !errors.Is(err, client.ErrNotImplemented) {
			h.tracker.Record(traffic.Failure)
		}
		writeUpstreamError(w, r, err)
		return
	}
	h.tracker.Record(traffic.Success)
	writeRaw(w, http.StatusOK, body)
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status      string
	statusCode  int
	reason      string
	credentials string
	errorPct    float64
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	weatherkit := "healthy"
	if result.reason == "error_rate_breach" {
		weatherkit = "unhealthy"
	}
	resp := map[string]interface{}{
		"status":  result.status,
		"service": "weatherkit-gateway",
		"version": "dev",
		"phase":   lifecycle.CurrentPhase().String(),
		"checks": map[string]string{
			"weatherkit":  weatherkit,
			"credentials": result.credentials,
		},
		"errorRatePct": result.errorPct,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > credentials invalid > degraded error rate > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsDraining() {
		return healthResult{status: "shutting-down", statusCode: http.StatusServiceUnavailable, reason: "signal", credentials: "unchecked"}
	}
	if err := h.client.ValidateCredentials(ctx); err != nil {
		observability.LoggerFromContext(ctx).Debug("credential check failed", zap.Error(err))
		return healthResult{status: "degraded", statusCode: http.StatusServiceUnavailable, reason: "credentials_invalid", credentials: "invalid"}
	}
	if h.healthConfig == nil || h.healthConfig.DegradedWindow <= 0 || h.healthConfig.DegradedErrorPct <= 0 {
		return healthResult{status: "healthy", statusCode: http.StatusOK, credentials: "valid"}
	}
	counts := h.tracker.Counts(h.healthConfig.DegradedWindow)
	pct := counts.ErrorPct()
	if counts.Success+counts.Failure > 0 && pct >= float64(h.healthConfig.DegradedErrorPct) {
		return healthResult{status: "degraded", statusCode: http.StatusServiceUnavailable, reason: "error_rate_breach", credentials: "valid", errorPct: pct}
	}
	return healthResult{status: "healthy", statusCode: http.StatusOK, credentials: "valid", errorPct: pct}
}

// validationCode maps input validation sentinels to API error codes.
func validationCode(err error) string {
	switch {
	case errors.Is(err, validation.ErrInvalidLatitude), errors.Is(err, validation.ErrInvalidLongitude):
		return "INVALID_COORDINATES"
	case errors.Is(err, validation.ErrInvalidLanguage):
		return "INVALID_LANGUAGE"
	case errors.Is(err, validation.ErrInvalidCountry):
		return "INVALID_COUNTRY"
	case errors.Is(err, validation.ErrInvalidTimeBound):
		return "INVALID_TIME_BOUND"
	case errors.Is(err, validation.ErrUnknownDataSet):
		return "INVALID_DATA_SET"
	}
	return "INVALID_REQUEST"
}

// writeJSON writes a JSON response with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes an upstream JSON body unchanged.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) when the request carries one.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeUpstreamError maps a client error to a gateway status by category.
// The underlying error is logged at DEBUG; callers only see the code.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	category := client.CategorizeError(err)
	observability.LoggerFromContext(r.Context()).Debug("upstream error",
		zap.String("category", string(category)), zap.Error(err))

	switch category {
	case client.ErrorCategoryNotImplemented:
		writeError(w, r, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Weather alert lookup is not implemented")
	case client.ErrorCategoryInvalidCredential:
		writeError(w, r, http.StatusInternalServerError, "CREDENTIALS_INVALID", "WeatherKit credentials are invalid")
	case client.ErrorCategoryTimeout:
		writeError(w, r, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "WeatherKit did not respond in time")
	case client.ErrorCategoryNetwork, client.ErrorCategoryUpstream5xx:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to reach WeatherKit")
	case client.ErrorCategoryUnauthorized, client.ErrorCategoryNotFound,
		client.ErrorCategoryRateLimited, client.ErrorCategoryUpstream4xx:
		var httpErr *client.HTTPError
		status := 0
		if errors.As(err, &httpErr) {
			status = httpErr.StatusCode
			w.Header().Set("X-Upstream-Status", strconv.Itoa(status))
		}
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_REJECTED",
			fmt.Sprintf("WeatherKit rejected the request (HTTP %d)", status))
	case client.ErrorCategoryParsing:
		writeError(w, r, http.StatusBadGateway, "UPSTREAM_BAD_RESPONSE", "WeatherKit returned an unreadable response")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "Unexpected error")
	}
}
