// Package routing defines the provider contract for directions and
// geocoding, and the orchestrator that walks configured providers in
// fallback order.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/saferoute/saferoute/internal/geo"
)

// Sentinel errors for provider operations.
var (
	// ErrProviderUnavailable indicates the provider could not be reached
	// (network or auth failure, timeout, or open circuit breaker).
	ErrProviderUnavailable = errors.New("routing provider unavailable")
	// ErrNoRouteFound indicates a reachable provider found no path between
	// the given points.
	ErrNoRouteFound = errors.New("no route found between the given points")
	// ErrRateLimited indicates the provider rejected the call for quota.
	ErrRateLimited = errors.New("provider rate limit exceeded")
	// ErrAddressNotFound indicates a geocoding lookup matched nothing.
	ErrAddressNotFound = errors.New("address not found")
	// ErrRoutingUnavailable indicates every configured provider was
	// exhausted for a request.
	ErrRoutingUnavailable = errors.New("all routing providers exhausted")
)

// Provider is one routing/geocoding backend. Implementations translate
// upstream failures into the sentinel errors above; throttling and fallback
// policy live in the Orchestrator, never in a provider.
type Provider interface {
	// GetDirections returns one or more path candidates between two points.
	GetDirections(ctx context.Context, req DirectionsRequest) ([]Candidate, error)
	// Geocode resolves a free-text address to a coordinate, or
	// ErrAddressNotFound.
	Geocode(ctx context.Context, address string) (geo.Coordinate, error)
	// Name identifies the provider for logging, ranking, and metrics.
	Name() string
}

// DirectionsRequest asks for path candidates between two points.
type DirectionsRequest struct {
	Origin       geo.Coordinate
	Destination  geo.Coordinate
	Alternatives bool // request alternative paths where the provider supports them
}

// Candidate is one proposed path for a leg, normalized from whatever shape
// the upstream provider returned.
type Candidate struct {
	ID               string
	Provider         string
	GeometryPolyline string // encoded polyline, precision 5
	DistanceMeters   int
	DurationSeconds  int
	Summary          string
	Instructions     []Instruction
	FetchedAt        time.Time
}

// Instruction is one turn-by-turn step.
type Instruction struct {
	Text           string
	DistanceMeters int
	DurationSecs   int
}

// Error carries provider context for an upstream failure. The wrapped Err is
// always one of the sentinel errors so callers can branch with errors.Is.
type Error struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// fallthroughError reports whether the orchestrator should advance to the
// next provider on this error. A route-less provider does not disqualify a
// better-positioned one, so ErrNoRouteFound falls through as well.
func fallthroughError(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrNoRouteFound) ||
		errors.Is(err, ErrAddressNotFound)
}
