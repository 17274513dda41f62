// Package api provides the HTTP API for SafeRoute.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/api/handler"
	"github.com/saferoute/saferoute/internal/api/middleware"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Optimizer handler.RouteOptimizer
	Geocoder  handler.Geocoder
	Scorer    handler.SafetyScorer
	Registry  *resilience.Registry
	RiskCache handler.RiskCache
	Geocode   handler.GeocodeCache
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "saferoute-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	routeHandler := handler.NewRouteHandler(cfg.Optimizer, cfg.Geocoder)
	safetyHandler := handler.NewSafetyHandler(cfg.Scorer)
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.RiskCache, cfg.Geocode)

	// Rate limit tiers per endpoint category
	strictRateLimit := middleware.RateLimitByIP(middleware.StrictRateLimit)       // 10 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Route optimization - expensive compute, strict rate limiting
		r.With(expensiveRateLimit).Post("/routes:optimize", routeHandler.OptimizeRoute)

		// Safety heatmap queries
		r.Route("/safety", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Post("/score-location", safetyHandler.ScoreLocation)
			r.Post("/score-route", safetyHandler.ScoreRoute)
		})

		// Ops endpoints
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/providers", opsHandler.Providers)
			r.Get("/caches", opsHandler.Caches)
			r.With(strictRateLimit).Post("/reload-districts", opsHandler.ReloadDistricts)
		})
	})

	return r
}
