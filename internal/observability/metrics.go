package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// Gateway request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// Gateway request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent gateway requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// WeatherKit call rate by endpoint (availability, weather). Watch for: error vs success ratio.
	WeatherKitCallsTotal *prometheus.CounterVec

	// WeatherKit latency per call. Watch for: p95 > 2s (upstream degradation).
	WeatherKitDuration *prometheus.HistogramVec

	// WeatherKit failures by category (see client.CategorizeError). Watch for: invalid_credential spikes after key rotation.
	WeatherKitErrorsTotal *prometheus.CounterVec

	// Bearer tokens minted, by result (signed, reused, error).
	TokensSignedTotal *prometheus.CounterVec

	// Rate limit denials on the gateway. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherKitCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherkitCallsTotal",
			Help: "Total number of WeatherKit API calls",
		},
		[]string{"endpoint", "status"},
	)
	WeatherKitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherkitDurationSeconds",
			Help:    "WeatherKit API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "status"},
	)
	WeatherKitErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherkitErrorsTotal",
			Help: "Total number of failed WeatherKit operations by error category",
		},
		[]string{"endpoint", "category"},
	)
	TokensSignedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherkitTokensSignedTotal",
			Help: "Total number of bearer tokens handed out, by result (signed, reused, error)",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherKitCallsTotal, WeatherKitDuration, WeatherKitErrorsTotal,
		TokensSignedTotal,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
