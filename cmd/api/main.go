// Package main provides the entrypoint for the SafeRoute API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/crimerisk"
	"github.com/saferoute/saferoute/internal/database"
	"github.com/saferoute/saferoute/internal/optimizer"
	"github.com/saferoute/saferoute/internal/provider/resilience"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/routing/googlemaps"
	"github.com/saferoute/saferoute/internal/routing/openrouteservice"
	"github.com/saferoute/saferoute/internal/routing/osrm"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "saferoute-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeRoute API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Provider health registry shared by all routing clients
	registry := resilience.NewRegistry()

	// Assemble routing providers in fallback order. Providers without
	// credentials are left out entirely.
	var providers []routing.Provider

	if apiKey := os.Getenv("GOOGLE_MAPS_API_KEY"); apiKey != "" {
		providers = append(providers, googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   apiKey,
			Registry: registry,
			Logger:   log,
		}))
		log.Info().Msg("google maps provider configured")
	}

	if baseURL := os.Getenv("OSRM_BASE_URL"); baseURL != "" {
		providers = append(providers, osrm.NewClient(osrm.ClientConfig{
			BaseURL:  baseURL,
			Registry: registry,
			Logger:   log,
		}))
		log.Info().Str("base_url", baseURL).Msg("osrm provider configured")
	}

	if apiKey := os.Getenv("ORS_API_KEY"); apiKey != "" {
		providers = append(providers, openrouteservice.NewClient(openrouteservice.ClientConfig{
			APIKey:   apiKey,
			Registry: registry,
			Logger:   log,
		}))
		log.Info().Msg("openrouteservice provider configured")
	}

	if len(providers) == 0 {
		log.Fatal().Msg("no routing providers configured - set GOOGLE_MAPS_API_KEY, OSRM_BASE_URL or ORS_API_KEY")
	}

	orchestrator := routing.NewOrchestrator(routing.OrchestratorConfig{
		Providers:     providers,
		Logger:        log,
		RaceProviders: os.Getenv("ROUTING_RACE_PROVIDERS") == "true",
	})
	log.Info().
		Strs("providers", orchestrator.ProviderNames()).
		Msg("routing orchestrator initialized")

	// Crime risk surface
	riskService := crimerisk.NewService(crimerisk.ServiceConfig{
		Repository: crimerisk.NewPostgresRepository(pool),
		Logger:     log,
	})
	if err := riskService.Reload(ctx); err != nil {
		// Districts are loaded by the worker, an empty snapshot at boot is
		// only a readiness concern.
		log.Warn().Err(err).Msg("initial district load failed")
	} else {
		log.Info().
			Int("districts", riskService.Stats().Districts).
			Msg("crime districts loaded")
	}

	// Police station index
	stationIndex := safety.NewStationIndex()
	if err := stationIndex.Load(ctx, safety.NewPostgresStationRepository(pool)); err != nil {
		log.Warn().Err(err).Msg("police station load failed")
	} else {
		log.Info().Int("stations", stationIndex.Len()).Msg("police stations loaded")
	}

	// Safety scorer with optional trained model artifacts
	scorer := safety.NewScorer(safety.ScorerConfig{
		CrimeRisk:  riskService,
		Stations:   stationIndex,
		Feedback:   safety.NewPostgresFeedbackSource(pool),
		Logger:     log,
		ModelPath:  os.Getenv("SAFETY_MODEL_PATH"),
		ScalerPath: os.Getenv("SAFETY_SCALER_PATH"),
	})
	if err := scorer.RefreshFeedback(ctx); err != nil {
		log.Warn().Err(err).Msg("initial feedback load failed")
	}
	if v := scorer.ModelVersion(); v != "" {
		log.Info().Str("model_version", v).Msg("safety model loaded")
	} else {
		log.Info().Msg("safety scorer running heuristic-only")
	}

	// Route optimizer
	opt := optimizer.New(optimizer.Config{
		Directions: orchestrator,
		Scorer:     scorer,
		Logger:     log,
	})
	log.Info().Msg("route optimizer initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Optimizer:   opt,
		Geocoder:    orchestrator,
		Scorer:      scorer,
		Registry:    registry,
		RiskCache:   riskService,
		Geocode:     orchestrator,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
