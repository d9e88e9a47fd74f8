//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"

	"github.com/kjstillabower/weatherkit-gateway/internal/token"
)

// IntegrationTestConfig holds live WeatherKit credentials for integration tests.
type IntegrationTestConfig struct {
	TeamID        string
	ServiceID     string
	KeyID         string
	PrivateKeyPEM []byte
	BaseURL       string
}

// GetIntegrationConfig loads credentials from WEATHERKIT_* env.
// Skips the test when any credential is missing.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	cfg := IntegrationTestConfig{
		TeamID:    os.Getenv("WEATHERKIT_TEAM_ID"),
		ServiceID: os.Getenv("WEATHERKIT_SERVICE_ID"),
		KeyID:     os.Getenv("WEATHERKIT_KEY_ID"),
		BaseURL:   os.Getenv("WEATHERKIT_URL"),
	}
	if path := os.Getenv("WEATHERKIT_PRIVATE_KEY_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read WEATHERKIT_PRIVATE_KEY_PATH: %v", err)
		}
		cfg.PrivateKeyPEM = data
	} else {
		cfg.PrivateKeyPEM = []byte(os.Getenv("WEATHERKIT_PRIVATE_KEY"))
	}
	if cfg.TeamID == "" || cfg.ServiceID == "" || cfg.KeyID == "" || len(cfg.PrivateKeyPEM) == 0 {
		t.Skip("WEATHERKIT_* credentials not set, skipping integration test")
	}
	return cfg
}

// SetupIntegrationSigner builds a Signer from the live credentials.
func SetupIntegrationSigner(t *testing.T, cfg IntegrationTestConfig) *token.Signer {
	t.Helper()
	creds, err := token.ParseCredentials(cfg.TeamID, cfg.ServiceID, cfg.KeyID, cfg.PrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParseCredentials() error = %v", err)
	}
	signer, err := token.NewSigner(creds)
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}
	return signer
}
