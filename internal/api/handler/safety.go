package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/pkg/polyline"
)

// SafetyScorer scores points and paths. Satisfied by safety.Scorer.
type SafetyScorer interface {
	ScoreLocation(ctx context.Context, p geo.Coordinate, at time.Time) (safety.LocationScore, error)
	ScoreRoute(ctx context.Context, coords []geo.Coordinate, at time.Time) (safety.RouteScore, error)
}

// SafetyHandler handles safety heatmap style queries.
type SafetyHandler struct {
	scorer SafetyScorer
}

// NewSafetyHandler creates a new SafetyHandler.
func NewSafetyHandler(scorer SafetyScorer) *SafetyHandler {
	return &SafetyHandler{scorer: scorer}
}

// ScoreLocation handles POST /v1/safety/score-location.
func (h *SafetyHandler) ScoreLocation(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if input.Point == nil {
		response.BadRequest(w, r, "point is required", []models.FieldError{
			{Field: "point", Message: "required"},
		})
		return
	}

	coord, err := geo.NewCoordinate(input.Point.Lat, input.Point.Lon)
	if err != nil {
		response.BadRequest(w, r, "coordinate out of range", []models.FieldError{
			{Field: "point", Message: "latitude or longitude out of range"},
		})
		return
	}

	at := time.Time{}
	if input.At != nil {
		at = input.At.Time()
	}

	score, err := h.scorer.ScoreLocation(r.Context(), coord, at)
	if err != nil {
		response.InternalError(w, r, "safety scoring failed")
		return
	}

	resp := models.ScoreLocationResponse{
		Score:        score.Score,
		ModelApplied: score.ModelApplied,
	}
	for _, f := range score.Factors {
		resp.Factors = append(resp.Factors, models.SafetyFactor{
			Name:         f.Name,
			Contribution: f.Contribution,
			Explanation:  f.Explanation,
		})
	}

	response.JSON(w, r, http.StatusOK, resp)
}

// ScoreRoute handles POST /v1/safety/score-route.
func (h *SafetyHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var input models.ScoreRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	coords, fieldErr := pathFromRequest(&input)
	if fieldErr != nil {
		response.BadRequest(w, r, fieldErr.Message, []models.FieldError{*fieldErr})
		return
	}

	at := time.Time{}
	if input.At != nil {
		at = input.At.Time()
	}

	score, err := h.scorer.ScoreRoute(r.Context(), coords, at)
	if err != nil {
		switch {
		case errors.Is(err, safety.ErrEmptyPath), errors.Is(err, geo.ErrInvalidCoordinate):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			response.InternalError(w, r, "safety scoring failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.ScoreRouteResponse{
		Score:         score.Score,
		RiskLevel:     models.RiskLevel(score.Level),
		SampledPoints: score.SampledPoints,
	})
}

// pathFromRequest accepts either an encoded polyline or an explicit point
// list.
func pathFromRequest(input *models.ScoreRouteRequest) ([]geo.Coordinate, *models.FieldError) {
	if input.Polyline != nil && *input.Polyline != "" {
		decoded := polyline.Decode(*input.Polyline)
		if len(decoded) == 0 {
			return nil, &models.FieldError{Field: "polyline", Message: "polyline decoded to no points"}
		}
		coords := make([]geo.Coordinate, len(decoded))
		for i, p := range decoded {
			coords[i] = geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
		}
		return coords, nil
	}

	if len(input.Points) == 0 {
		return nil, &models.FieldError{Field: "points", Message: "polyline or points is required"}
	}

	coords := make([]geo.Coordinate, len(input.Points))
	for i, p := range input.Points {
		coords[i] = geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return coords, nil
}
