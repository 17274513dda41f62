// Package handler provides HTTP handlers for the SafeRoute API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/saferoute/saferoute/internal/api/models"
	"github.com/saferoute/saferoute/internal/api/response"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/optimizer"
	"github.com/saferoute/saferoute/internal/routing"
)

// RouteOptimizer builds optimized routes. Satisfied by optimizer.Optimizer.
type RouteOptimizer interface {
	OptimizeRoute(ctx context.Context, req optimizer.Request) (*optimizer.OptimizedRoute, error)
}

// Geocoder resolves addresses. Satisfied by routing.Orchestrator.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Coordinate, error)
}

// RouteHandler handles route optimization endpoints.
type RouteHandler struct {
	optimizer RouteOptimizer
	geocoder  Geocoder
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(opt RouteOptimizer, geocoder Geocoder) *RouteHandler {
	return &RouteHandler{optimizer: opt, geocoder: geocoder}
}

// OptimizeRoute handles POST /v1/routes:optimize.
func (h *RouteHandler) OptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var input models.RouteOptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if len(input.Stops) == 0 {
		response.BadRequest(w, r, "at least one stop is required", []models.FieldError{
			{Field: "stops", Message: "must not be empty"},
		})
		return
	}

	start, fieldErr := h.resolvePoint(r.Context(), input.Start, input.StartAddress, "start")
	if fieldErr != nil {
		response.BadRequest(w, r, fieldErr.Message, []models.FieldError{*fieldErr})
		return
	}

	stops := make([]geo.Stop, 0, len(input.Stops))
	for i, s := range input.Stops {
		field := fmt.Sprintf("stops[%d]", i)
		loc, fieldErr := h.resolvePoint(r.Context(), s.Point, s.Address, field)
		if fieldErr != nil {
			response.BadRequest(w, r, fieldErr.Message, []models.FieldError{*fieldErr})
			return
		}
		stops = append(stops, geo.Stop{
			ID:       s.ID,
			Location: loc,
			Priority: s.Priority,
		})
	}

	req := optimizer.Request{
		Start:       start,
		Stops:       stops,
		OptimizeFor: input.OptimizeFor,
		RiderID:     input.RiderID,
	}
	if input.DepartureTime != nil {
		req.DepartureTime = input.DepartureTime.Time()
	}

	route, err := h.optimizer.OptimizeRoute(r.Context(), req)
	if err != nil {
		h.writeOptimizeError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toRouteResponse(route))
}

// resolvePoint turns a point-or-address input into a coordinate.
func (h *RouteHandler) resolvePoint(ctx context.Context, point *models.Point, address *string, field string) (geo.Coordinate, *models.FieldError) {
	if point != nil {
		coord, err := geo.NewCoordinate(point.Lat, point.Lon)
		if err != nil {
			return geo.Coordinate{}, &models.FieldError{Field: field, Message: "coordinate out of range"}
		}
		return coord, nil
	}

	if address == nil || *address == "" {
		return geo.Coordinate{}, &models.FieldError{Field: field, Message: "point or address is required"}
	}

	coord, err := h.geocoder.Geocode(ctx, *address)
	if err != nil {
		if errors.Is(err, routing.ErrAddressNotFound) {
			return geo.Coordinate{}, &models.FieldError{Field: field, Message: "address could not be resolved"}
		}
		return geo.Coordinate{}, &models.FieldError{Field: field, Message: "geocoding unavailable"}
	}
	return coord, nil
}

func (h *RouteHandler) writeOptimizeError(w http.ResponseWriter, r *http.Request, err error) {
	var failure *optimizer.RoutingFailure
	switch {
	case errors.As(err, &failure):
		response.ServiceUnavailable(w, r, fmt.Sprintf("no route available for leg %d", failure.LegIndex))
	case errors.Is(err, geo.ErrInvalidCoordinate), errors.Is(err, optimizer.ErrNoStops):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.ServiceUnavailable(w, r, "request timed out")
	default:
		response.InternalError(w, r, "route optimization failed")
	}
}

func toRouteResponse(route *optimizer.OptimizedRoute) models.RouteOptimizeResponse {
	resp := models.RouteOptimizeResponse{
		RouteID:              route.RouteID,
		GeneratedAt:          models.Timestamp(time.Now()),
		TotalDistanceMeters:  route.TotalDistanceMeters,
		TotalDurationSeconds: route.TotalDurationSeconds,
		AverageSafetyScore:   route.AverageSafetyScore,
		Objectives: models.ObjectiveWeights{
			Time:     route.Objectives.Time,
			Safety:   route.Objectives.Safety,
			Distance: route.Objectives.Distance,
		},
	}

	for _, leg := range route.Legs {
		out := models.Leg{
			LegIndex:        leg.LegIndex,
			StopID:          leg.StopID,
			Origin:          models.Point{Lat: leg.Origin.Lat, Lon: leg.Origin.Lon},
			Destination:     models.Point{Lat: leg.Destination.Lat, Lon: leg.Destination.Lon},
			Selected:        toRouteOption(leg.Selected),
			RLRecommendedID: leg.RLRecommendedID,
		}
		for _, alt := range leg.Alternatives {
			out.Alternatives = append(out.Alternatives, toRouteOption(alt))
		}
		resp.Legs = append(resp.Legs, out)
	}

	return resp
}

func toRouteOption(sc optimizer.ScoredCandidate) models.RouteOption {
	return models.RouteOption{
		ID:              sc.Candidate.ID,
		Provider:        sc.Candidate.Provider,
		Polyline:        sc.Candidate.GeometryPolyline,
		Summary:         sc.Candidate.Summary,
		DistanceMeters:  sc.Candidate.DistanceMeters,
		DurationSeconds: sc.Candidate.DurationSeconds,
		SafetyScore:     sc.SafetyScore,
		RiskLevel:       models.RiskLevel(sc.RiskLevel),
		Cost:            sc.Cost,
	}
}
