package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherkit-gateway/internal/client"
)

func benchmarkRouter(mock *mockWeatherClient, limiter *rate.Limiter) http.Handler {
	h := NewHandler(mock, nil, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, Defaults{}, zap.NewNop())
	return NewRouter(h, RouterConfig{Logger: zap.NewNop(), Limiter: limiter, RequestTimeout: 5 * time.Second})
}

func runBenchmark(b *testing.B, router http.Handler, path string) {
	req := httptest.NewRequest("GET", path, nil)
	req.Header.Set("X-Correlation-ID", "bench-id")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkHandler_GetWeather benchmarks the full middleware chain on a successful fetch.
func BenchmarkHandler_GetWeather(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}, nil),
		"/weather/37.3349/-122.009?dataSets=current_weather,forecast_daily&dailyStart=2024-06-01T00:00:00Z")
}

// BenchmarkHandler_GetWeather_Error benchmarks upstream error mapping.
func BenchmarkHandler_GetWeather_Error(b *testing.B) {
	mock := &mockWeatherClient{weatherErr: &client.HTTPError{Endpoint: "weather", StatusCode: 500}}
	runBenchmark(b, benchmarkRouter(mock, nil), "/weather/37.3349/-122.009")
}

// BenchmarkHandler_GetWeather_ValidationError benchmarks input rejection.
func BenchmarkHandler_GetWeather_ValidationError(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}, nil), "/weather/95/0?language=en")
}

// BenchmarkHandler_GetWeather_RateLimited benchmarks rate limiting overhead.
func BenchmarkHandler_GetWeather_RateLimited(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}, rate.NewLimiter(rate.Limit(100), 250)), "/weather/0/0")
}

// BenchmarkHandler_GetHealth benchmarks the health check endpoint.
func BenchmarkHandler_GetHealth(b *testing.B) {
	runBenchmark(b, benchmarkRouter(&mockWeatherClient{}, nil), "/health")
}
