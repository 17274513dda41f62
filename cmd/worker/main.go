// Package main provides the entrypoint for the SafeRoute maintenance worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/crimerisk"
	"github.com/saferoute/saferoute/internal/database"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "saferoute-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeRoute worker")

	// Worker also exposes a health endpoint for Cloud Run.
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Crime risk surface
	riskService := crimerisk.NewService(crimerisk.ServiceConfig{
		Repository: crimerisk.NewPostgresRepository(pool),
		Logger:     log,
	})
	if err := riskService.Reload(ctx); err != nil {
		log.Warn().Err(err).Msg("initial district load failed")
	}

	// Police station index
	stationIndex := safety.NewStationIndex()
	if err := stationIndex.Load(ctx, safety.NewPostgresStationRepository(pool)); err != nil {
		log.Warn().Err(err).Msg("police station load failed")
	}

	// Safety scorer. The worker writes the model artifacts the API reads.
	feedbackSource := safety.NewPostgresFeedbackSource(pool)
	scorer := safety.NewScorer(safety.ScorerConfig{
		CrimeRisk:  riskService,
		Stations:   stationIndex,
		Feedback:   feedbackSource,
		Logger:     log,
		ModelPath:  os.Getenv("SAFETY_MODEL_PATH"),
		ScalerPath: os.Getenv("SAFETY_SCALER_PATH"),
	})

	job := worker.NewMaintenanceJob(worker.MaintenanceJobConfig{
		Config:      worker.DefaultMaintenanceConfig(),
		Logger:      log,
		RiskSurface: riskService,
		Trainer:     scorer,
		Feedback:    feedbackSource,
	})

	// Create HTTP server for health checks
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health check server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Pub/Sub subscription for maintenance jobs
	projectID := os.Getenv("GCP_PROJECT_ID")
	subscription := os.Getenv("PUBSUB_SUBSCRIPTION")
	if subscription == "" {
		subscription = "saferoute-maintenance"
	}

	if projectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscription,
			Job:              job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer handler.Close()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	} else {
		// Local development: run the jobs on a timer instead.
		log.Warn().Msg("GCP_PROJECT_ID not set, running maintenance on interval")
		go func() {
			ticker := time.NewTicker(15 * time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := job.ReloadDistricts(ctx); err != nil {
						log.Error().Err(err).Msg("district reload failed")
					}
					if err := job.RetrainModel(ctx); err != nil {
						log.Error().Err(err).Msg("model retrain failed")
					}
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
