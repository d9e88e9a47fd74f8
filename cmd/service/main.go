package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weatherkit-gateway/internal/client"
	"github.com/kjstillabower/weatherkit-gateway/internal/config"
	httphandler "github.com/kjstillabower/weatherkit-gateway/internal/http"
	"github.com/kjstillabower/weatherkit-gateway/internal/lifecycle"
	"github.com/kjstillabower/weatherkit-gateway/internal/observability"
	"github.com/kjstillabower/weatherkit-gateway/internal/token"
	"github.com/kjstillabower/weatherkit-gateway/internal/traffic"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	router, inFlight, err := buildRouter(cfg, logger)
	if err != nil {
		logger.Fatal("startup", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("weatherkit_url", cfg.WeatherKitURL))
		lifecycle.SetPhase(lifecycle.Serving)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetPhase(lifecycle.Draining)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	logger.Info("shutdown complete")
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		fmt.Fprintf(os.Stderr, "telemetry flush: %v\n", err)
	}
}

// buildRouter turns configuration into the signer, client and routed handler.
// Credentials are parsed and a first token minted here so a bad key fails startup.
func buildRouter(cfg *config.Config, logger *zap.Logger) (http.Handler, *httphandler.InFlightTracker, error) {
	creds, err := token.ParseCredentials(cfg.TeamID, cfg.ServiceID, cfg.KeyID, cfg.PrivateKeyPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("credentials: %w", err)
	}
	var opts []token.Option
	if cfg.TokenReuse {
		opts = append(opts, token.WithReuse(cfg.TokenReuseMargin))
	}
	signer, err := token.NewSigner(creds, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("token signer: %w", err)
	}
	if _, err := signer.Token(); err != nil {
		return nil, nil, fmt.Errorf("token signer: %w", err)
	}

	weatherClient, err := client.NewWeatherKitClient(signer, cfg.WeatherKitURL, cfg.WeatherKitTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("weatherkit client: %w", err)
	}
	logger.Info("weatherkit client ready",
		zap.String("key_id", creds.KeyID),
		zap.String("service", creds.ServiceIdentifier()),
		zap.Bool("token_reuse", cfg.TokenReuse),
		zap.Duration("timeout", cfg.WeatherKitTimeout))

	tracker := traffic.NewTracker(0)
	handler := httphandler.NewHandler(weatherClient, tracker,
		&httphandler.HealthConfig{
			DegradedWindow:   cfg.DegradedWindow,
			DegradedErrorPct: cfg.DegradedErrorPct,
			StartTime:        time.Now(),
		},
		httphandler.Defaults{Language: cfg.DefaultLanguage, Country: cfg.DefaultCountry},
		logger)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
		logger.Info("rate limiter enabled", zap.Int("rps", cfg.RateLimitRPS), zap.Int("burst", cfg.RateLimitBurst))
	}

	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		Tracker:        tracker,
		InFlight:       inFlight,
		RequestTimeout: cfg.RequestTimeout,
	})
	return router, inFlight, nil
}
