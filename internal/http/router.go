package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherkit-gateway/internal/observability"
	"github.com/kjstillabower/weatherkit-gateway/internal/traffic"
)

// RouterConfig wires the middleware around the gateway routes.
// Limiter and InFlight may be nil.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	Tracker        *traffic.Tracker
	InFlight       *InFlightTracker
	RequestTimeout time.Duration
}

// NewRouter registers /health, /metrics and the WeatherKit routes. Only the
// upstream routes are rate limited and carry the request timeout.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	if cfg.InFlight != nil {
		router.Use(cfg.InFlight.Middleware)
	}
	router.Use(MetricsMiddleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(RateLimitMiddleware(cfg.Limiter, cfg.Tracker))
	if cfg.RequestTimeout > 0 {
		api.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	api.HandleFunc("/availability/{lat}/{lon}", h.GetAvailability).Methods(http.MethodGet)
	api.HandleFunc("/weather/{lat}/{lon}", h.GetWeather).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods(http.MethodGet)

	return router
}
