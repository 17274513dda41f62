package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/crimerisk"
	"github.com/saferoute/saferoute/internal/provider/resilience"
)

// RiskCache exposes the crime risk surface's ops operations. Satisfied by
// crimerisk.Service.
type RiskCache interface {
	Reload(ctx context.Context) error
	Stats() crimerisk.Stats
}

// GeocodeCache reports the geocode cache size. Satisfied by
// routing.Orchestrator.
type GeocodeCache interface {
	GeocodeCacheStats() int
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	riskCache RiskCache
	geocode   GeocodeCache
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, riskCache RiskCache, geocode GeocodeCache) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		riskCache: riskCache,
		geocode:   geocode,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check. The service
// is ready once the crime district snapshot is loaded.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatusOK
	if h.riskCache != nil && h.riskCache.Stats().Districts == 0 {
		status = models.HealthStatusDegraded
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, health)
}

// Providers handles GET /v1/ops/providers - per-provider circuit state.
func (h *OpsHandler) Providers(w http.ResponseWriter, r *http.Request) {
	resp := models.ProvidersResponse{Providers: []models.ProviderStatus{}}

	if h.registry != nil {
		for _, health := range h.registry.AllHealth() {
			status := models.HealthStatusOK
			if !health.IsHealthy() {
				status = models.HealthStatusDegraded
			}

			ps := models.ProviderStatus{
				Provider:     health.Name,
				Status:       status,
				CircuitState: health.CircuitState.String(),
			}
			if health.LastSuccessAt != nil {
				ts := models.Timestamp(*health.LastSuccessAt)
				ps.LastSuccessAt = &ts
			}
			if health.LastFailureAt != nil {
				ts := models.Timestamp(*health.LastFailureAt)
				ps.LastFailureAt = &ts
			}
			if health.LastError != "" {
				msg := health.LastError
				ps.Message = &msg
			}
			resp.Providers = append(resp.Providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// Caches handles GET /v1/ops/caches - process cache counters.
func (h *OpsHandler) Caches(w http.ResponseWriter, r *http.Request) {
	resp := models.CachesResponse{Caches: []models.CacheStats{}}

	if h.riskCache != nil {
		stats := h.riskCache.Stats()
		resp.Caches = append(resp.Caches, models.CacheStats{
			Name:    "crime_risk_grid",
			Entries: stats.Cells,
			Hits:    stats.Hits,
			Misses:  stats.Misses,
		})
	}
	if h.geocode != nil {
		resp.Caches = append(resp.Caches, models.CacheStats{
			Name:    "geocode",
			Entries: h.geocode.GeocodeCacheStats(),
		})
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// ReloadDistricts handles POST /v1/ops/reload-districts - rebuild the crime
// risk surface without a restart.
func (h *OpsHandler) ReloadDistricts(w http.ResponseWriter, r *http.Request) {
	if h.riskCache == nil {
		response.ServiceUnavailable(w, r, "risk cache not configured")
		return
	}

	if err := h.riskCache.Reload(r.Context()); err != nil {
		response.ServiceUnavailable(w, r, "district reload failed")
		return
	}

	response.JSON(w, r, http.StatusOK, models.ReloadDistrictsResponse{
		Districts:  h.riskCache.Stats().Districts,
		ReloadedAt: models.Timestamp(time.Now()),
	})
}
