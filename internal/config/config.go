package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultWeatherKitURL is used when weatherkit.url is empty.
const DefaultWeatherKitURL = "https://weatherkit.apple.com/api/v1"

// Config holds service configuration loaded from YAML, secrets and env.
type Config struct {
	ServerPort string
	LogLevel   string

	TeamID        string
	ServiceID     string
	KeyID         string
	PrivateKeyPEM []byte

	WeatherKitURL     string
	WeatherKitTimeout time.Duration
	DefaultLanguage   string
	DefaultCountry    string

	TokenReuse       bool
	TokenReuseMargin time.Duration

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`

	WeatherKit struct {
		URL             string `yaml:"url"`
		Timeout         string `yaml:"timeout"`
		DefaultLanguage string `yaml:"default_language"`
		DefaultCountry  string `yaml:"default_country"`
	} `yaml:"weatherkit"`

	Token struct {
		Reuse       bool   `yaml:"reuse"`
		ReuseMargin string `yaml:"reuse_margin"`
	} `yaml:"token"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	TeamID         string `yaml:"team_id"`
	ServiceID      string `yaml:"service_id"`
	KeyID          string `yaml:"key_id"`
	PrivateKey     string `yaml:"private_key"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// Load reads config/{ENV_NAME}.yaml (default dev) relative to the working directory.
// A .env file there, if present, is loaded into the environment first without
// overriding variables already set. Credentials come from WEATHERKIT_* env,
// falling back per field to config/secrets.yaml. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = fc.Server.LogLevel
	}

	if err := loadCredentials(cfg, filepath.Join(cwd, "config", "secrets.yaml")); err != nil {
		return nil, err
	}

	cfg.WeatherKitURL = strings.TrimSpace(os.Getenv("WEATHERKIT_URL"))
	if cfg.WeatherKitURL == "" {
		cfg.WeatherKitURL = strings.TrimSpace(fc.WeatherKit.URL)
	}
	if cfg.WeatherKitURL == "" {
		cfg.WeatherKitURL = DefaultWeatherKitURL
	}
	cfg.WeatherKitTimeout = parseDurationOrZero(fc.WeatherKit.Timeout, 10*time.Second)
	cfg.DefaultLanguage = strings.TrimSpace(fc.WeatherKit.DefaultLanguage)
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	cfg.DefaultCountry = strings.ToUpper(strings.TrimSpace(fc.WeatherKit.DefaultCountry))
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "US"
	}

	cfg.TokenReuse = fc.Token.Reuse
	cfg.TokenReuseMargin = parseDuration(fc.Token.ReuseMargin, time.Minute)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = cfg.RateLimitRPS * 2
	}

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadCredentials fills the WeatherKit identity from env, then from the secrets
// file for any field env left empty. The key itself may be inline PEM or a path.
func loadCredentials(cfg *Config, secretsPath string) error {
	cfg.TeamID = strings.TrimSpace(os.Getenv("WEATHERKIT_TEAM_ID"))
	cfg.ServiceID = strings.TrimSpace(os.Getenv("WEATHERKIT_SERVICE_ID"))
	cfg.KeyID = strings.TrimSpace(os.Getenv("WEATHERKIT_KEY_ID"))
	keyPEM := os.Getenv("WEATHERKIT_PRIVATE_KEY")
	keyPath := strings.TrimSpace(os.Getenv("WEATHERKIT_PRIVATE_KEY_PATH"))

	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read secrets file: %w", err)
		}
	} else {
		var sec secretsFile
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return fmt.Errorf("parse secrets file: %w", err)
		}
		cfg.TeamID = firstNonEmpty(cfg.TeamID, sec.TeamID)
		cfg.ServiceID = firstNonEmpty(cfg.ServiceID, sec.ServiceID)
		cfg.KeyID = firstNonEmpty(cfg.KeyID, sec.KeyID)
		if keyPEM == "" && keyPath == "" {
			keyPEM = sec.PrivateKey
			keyPath = strings.TrimSpace(sec.PrivateKeyPath)
		}
	}

	if keyPEM == "" && keyPath != "" {
		if !filepath.IsAbs(keyPath) {
			keyPath = filepath.Join(filepath.Dir(secretsPath), "..", keyPath)
		}
		data, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("read private key file: %w", err)
		}
		keyPEM = string(data)
	}
	cfg.PrivateKeyPEM = []byte(strings.TrimSpace(keyPEM))

	var missing []string
	if cfg.TeamID == "" {
		missing = append(missing, "WEATHERKIT_TEAM_ID")
	}
	if cfg.ServiceID == "" {
		missing = append(missing, "WEATHERKIT_SERVICE_ID")
	}
	if cfg.KeyID == "" {
		missing = append(missing, "WEATHERKIT_KEY_ID")
	}
	if len(cfg.PrivateKeyPEM) == 0 {
		missing = append(missing, "WEATHERKIT_PRIVATE_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required (set env or config/secrets.yaml)", strings.Join(missing, ", "))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero and negative durations are returned as-is for validate to reject.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects a non-positive upstream timeout and stretches RequestTimeout
// so a gateway request always outlives the upstream call it makes.
func validate(cfg *Config) error {
	if cfg.WeatherKitTimeout <= 0 {
		return fmt.Errorf("weatherkit.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherKitTimeout {
		cfg.RequestTimeout = cfg.WeatherKitTimeout + time.Second
	}
	if cfg.TokenReuse && cfg.TokenReuseMargin >= 10*time.Minute {
		return fmt.Errorf("token.reuse_margin must be below the 10m token lifetime, got %s", cfg.TokenReuseMargin)
	}
	if cfg.DegradedErrorPct > 100 {
		return fmt.Errorf("health.degraded_error_pct must be at most 100, got %d", cfg.DegradedErrorPct)
	}
	return nil
}
