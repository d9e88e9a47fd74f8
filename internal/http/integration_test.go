//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherkit-gateway/internal/client"
	"github.com/kjstillabower/weatherkit-gateway/internal/testhelpers"
	"github.com/kjstillabower/weatherkit-gateway/internal/traffic"
)

// setupIntegrationRouter builds the full gateway stack against live WeatherKit.
func setupIntegrationRouter(t *testing.T, limiter *rate.Limiter) http.Handler {
	cfg := testhelpers.GetIntegrationConfig(t)
	weatherClient, err := client.NewWeatherKitClient(testhelpers.SetupIntegrationSigner(t, cfg), cfg.BaseURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewWeatherKitClient() error = %v", err)
	}
	tracker := traffic.NewTracker(0)
	logger := zap.NewNop()
	h := NewHandler(weatherClient, tracker, &HealthConfig{DegradedWindow: time.Minute, DegradedErrorPct: 50}, Defaults{}, logger)
	return NewRouter(h, RouterConfig{Logger: logger, Limiter: limiter, Tracker: tracker, RequestTimeout: 15 * time.Second})
}

func makeIntegrationRequest(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

// TestIntegration_GetAvailability verifies the gateway relays live availability.
func TestIntegration_GetAvailability(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := makeIntegrationRequest(router, "/availability/37.3349/-122.0090")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var sets []string
	if err := json.NewDecoder(w.Body).Decode(&sets); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sets) == 0 {
		t.Error("availability empty")
	}
}

// TestIntegration_GetWeather verifies a multi-dataset fetch through the gateway.
func TestIntegration_GetWeather(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	w := makeIntegrationRequest(router, "/weather/37.3349/-122.0090?dataSets=current_weather,forecast_daily")

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	var body map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := body["currentWeather"]; !ok {
		t.Errorf("response keys = %v, want currentWeather", body)
	}
}

// TestIntegration_GetHealth_FullStack verifies real credentials report healthy.
func TestIntegration_GetHealth_FullStack(t *testing.T) {
	router := setupIntegrationRouter(t, nil)

	if w := makeIntegrationRequest(router, "/health"); w.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
}

// TestIntegration_GetMetrics_Format verifies upstream metrics appear after a call.
func TestIntegration_GetMetrics_Format(t *testing.T) {
	router := setupIntegrationRouter(t, nil)
	makeIntegrationRequest(router, "/availability/37.3349/-122.0090")

	w := makeIntegrationRequest(router, "/metrics")

	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "weatherkitCallsTotal", "weatherkitTokensSignedTotal"} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics missing %s", name)
		}
	}
}

// TestIntegration_RateLimiting_Enforcement verifies the limiter stops a burst
// before it reaches WeatherKit.
func TestIntegration_RateLimiting_Enforcement(t *testing.T) {
	router := setupIntegrationRouter(t, rate.NewLimiter(rate.Every(time.Minute), 1))

	first := makeIntegrationRequest(router, "/availability/37.3349/-122.0090")
	second := makeIntegrationRequest(router, "/availability/37.3349/-122.0090")

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d, want 200", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", second.Code)
	}
}
