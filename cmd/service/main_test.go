package main

import (
	"crypto/elliptic"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weatherkit-gateway/internal/config"
	"github.com/kjstillabower/weatherkit-gateway/internal/testhelpers"
)

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()
	_, pemBytes := testhelpers.GenerateKeyPEM(t, elliptic.P256())
	return &config.Config{
		ServerPort:        "0",
		TeamID:            testhelpers.TeamID,
		ServiceID:         testhelpers.ServiceID,
		KeyID:             testhelpers.KeyID,
		PrivateKeyPEM:     pemBytes,
		WeatherKitURL:     upstream,
		WeatherKitTimeout: 2 * time.Second,
		DefaultLanguage:   "en",
		DefaultCountry:    "US",
		TokenReuse:        true,
		TokenReuseMargin:  time.Minute,
		RequestTimeout:    3 * time.Second,
		RateLimitRPS:      100,
		RateLimitBurst:    200,
		DegradedWindow:    time.Minute,
		DegradedErrorPct:  50,
	}
}

// TestBuildRouter_EndToEnd verifies configuration wires a signed client behind
// the gateway routes.
func TestBuildRouter_EndToEnd(t *testing.T) {
	var auth atomic.Value
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/availability/37.3349/-122.009" || r.URL.RawQuery != "country=US" {
			t.Errorf("upstream request = %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["currentWeather"]`))
	}))
	defer upstream.Close()

	router, inFlight, err := buildRouter(testConfig(t, upstream.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("buildRouter() error = %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/availability/37.3349/-122.0090", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if got, _ := auth.Load().(string); !strings.HasPrefix(got, "Bearer ey") {
		t.Errorf("Authorization = %q, want bearer JWT", got)
	}
	if inFlight.Count() != 0 {
		t.Errorf("in-flight = %d after request, want 0", inFlight.Count())
	}

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest("GET", "/health", nil))
	if health.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", health.Code)
	}
}

// TestBuildRouter_RejectsBadKey verifies startup fails before serving with an unusable key.
func TestBuildRouter_RejectsBadKey(t *testing.T) {
	cfg := testConfig(t, "https://weatherkit.example.com/api/v1")
	_, p384 := testhelpers.GenerateKeyPEM(t, elliptic.P384())
	cfg.PrivateKeyPEM = p384

	if _, _, err := buildRouter(cfg, zap.NewNop()); err == nil {
		t.Fatal("buildRouter() error = nil, want credential error")
	}
}

// TestBuildRouter_RejectsBadURL verifies a relative WeatherKit URL fails startup.
func TestBuildRouter_RejectsBadURL(t *testing.T) {
	cfg := testConfig(t, "weatherkit.apple.com/api/v1")
	if _, _, err := buildRouter(cfg, zap.NewNop()); err == nil {
		t.Fatal("buildRouter() error = nil, want URL error")
	}
}
