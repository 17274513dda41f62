package routing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/saferoute/saferoute/internal/geo"
)

// mockProvider is a scriptable provider for orchestrator tests.
type mockProvider struct {
	name       string
	candidates []Candidate
	err        error
	geocoded   geo.Coordinate
	geoErr     error
	calls      atomic.Int32
	geoCalls   atomic.Int32
	delay      time.Duration
}

func (m *mockProvider) GetDirections(ctx context.Context, req DirectionsRequest) ([]Candidate, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

func (m *mockProvider) Geocode(ctx context.Context, address string) (geo.Coordinate, error) {
	m.geoCalls.Add(1)
	if m.geoErr != nil {
		return geo.Coordinate{}, m.geoErr
	}
	return m.geocoded, nil
}

func (m *mockProvider) Name() string { return m.name }

func testRequest() DirectionsRequest {
	return DirectionsRequest{
		Origin:       geo.Coordinate{Lat: 13.0827, Lon: 80.2707},
		Destination:  geo.Coordinate{Lat: 13.0067, Lon: 80.2206},
		Alternatives: true,
	}
}

func TestOrchestrator_GetDirections_FirstProviderWins(t *testing.T) {
	a := &mockProvider{name: "a", candidates: []Candidate{{DistanceMeters: 100}}}
	b := &mockProvider{name: "b", candidates: []Candidate{{DistanceMeters: 200}}}

	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a, b}})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].DistanceMeters != 100 {
		t.Errorf("expected provider a's candidate, got distance %d", candidates[0].DistanceMeters)
	}
	if b.calls.Load() != 0 {
		t.Errorf("provider b should not have been called, got %d calls", b.calls.Load())
	}
}

func TestOrchestrator_GetDirections_FallbackSkipsFailingProvider(t *testing.T) {
	a := &mockProvider{name: "a", err: &Error{Provider: "a", Err: ErrProviderUnavailable}}
	b := &mockProvider{name: "b", candidates: []Candidate{{DistanceMeters: 200}}}
	c := &mockProvider{name: "c", candidates: []Candidate{{DistanceMeters: 300}}}

	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a, b, c}})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].DistanceMeters != 200 {
		t.Errorf("expected provider b's candidate, got distance %d", candidates[0].DistanceMeters)
	}
	if c.calls.Load() != 0 {
		t.Error("provider c should never be invoked once b succeeds")
	}
}

func TestOrchestrator_GetDirections_NoRouteAdvances(t *testing.T) {
	a := &mockProvider{name: "a", err: &Error{Provider: "a", Err: ErrNoRouteFound}}
	b := &mockProvider{name: "b", candidates: []Candidate{{DistanceMeters: 200}}}

	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a, b}})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candidates) != 1 || candidates[0].DistanceMeters != 200 {
		t.Errorf("expected fallback to provider b, got %v", candidates)
	}
}

func TestOrchestrator_GetDirections_AllExhausted(t *testing.T) {
	a := &mockProvider{name: "a", err: &Error{Provider: "a", Err: ErrProviderUnavailable}}
	b := &mockProvider{name: "b", err: &Error{Provider: "b", Err: ErrRateLimited}}

	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a, b}})

	_, err := o.GetDirections(context.Background(), testRequest())
	if !errors.Is(err, ErrRoutingUnavailable) {
		t.Fatalf("expected ErrRoutingUnavailable, got %v", err)
	}
}

func TestOrchestrator_GetDirections_InvalidCoordinateRejectedBeforeNetwork(t *testing.T) {
	a := &mockProvider{name: "a", candidates: []Candidate{{DistanceMeters: 100}}}
	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a}})

	req := testRequest()
	req.Origin = geo.Coordinate{Lat: 95, Lon: 0}

	_, err := o.GetDirections(context.Background(), req)
	if !errors.Is(err, geo.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if a.calls.Load() != 0 {
		t.Error("provider must not be called for invalid input")
	}
}

func TestOrchestrator_GetDirections_TimeoutTriggersFallback(t *testing.T) {
	slow := &mockProvider{name: "slow", delay: 200 * time.Millisecond, candidates: []Candidate{{DistanceMeters: 1}}}
	fast := &mockProvider{name: "fast", candidates: []Candidate{{DistanceMeters: 2}}}

	o := NewOrchestrator(OrchestratorConfig{
		Providers:       []Provider{slow, fast},
		ProviderTimeout: 20 * time.Millisecond,
	})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].DistanceMeters != 2 {
		t.Errorf("expected fast provider to win after slow timeout, got %d", candidates[0].DistanceMeters)
	}
}

func TestOrchestrator_GetDirections_AssignsCandidateIdentity(t *testing.T) {
	a := &mockProvider{name: "a", candidates: []Candidate{{DistanceMeters: 1}, {DistanceMeters: 2}}}
	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a}})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].ID != "a-0" || candidates[1].ID != "a-1" {
		t.Errorf("expected deterministic IDs, got %q and %q", candidates[0].ID, candidates[1].ID)
	}
	if candidates[0].Provider != "a" {
		t.Errorf("expected provider name stamped on candidate, got %q", candidates[0].Provider)
	}
}

func TestOrchestrator_GetDirections_RaceMode(t *testing.T) {
	slow := &mockProvider{name: "slow", delay: 150 * time.Millisecond, candidates: []Candidate{{DistanceMeters: 1}}}
	fast := &mockProvider{name: "fast", delay: 5 * time.Millisecond, candidates: []Candidate{{DistanceMeters: 2}}}

	o := NewOrchestrator(OrchestratorConfig{
		Providers:     []Provider{slow, fast},
		RaceProviders: true,
	})

	candidates, err := o.GetDirections(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidates[0].DistanceMeters != 2 {
		t.Errorf("expected first success (fast provider), got distance %d", candidates[0].DistanceMeters)
	}
}

func TestOrchestrator_Geocode_CachesByCanonicalAddress(t *testing.T) {
	a := &mockProvider{name: "a", geocoded: geo.Coordinate{Lat: 13.0827, Lon: 80.2707}}
	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a}})

	coord, err := o.Geocode(context.Background(), "Chennai Central, Chennai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Lat != 13.0827 {
		t.Errorf("unexpected coordinate: %v", coord)
	}

	// Same address with different case and spacing must hit the cache.
	_, err = o.Geocode(context.Background(), "  chennai CENTRAL,   chennai ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.geoCalls.Load() != 1 {
		t.Errorf("expected 1 provider geocode call, got %d", a.geoCalls.Load())
	}
	if o.GeocodeCacheStats() != 1 {
		t.Errorf("expected 1 cache entry, got %d", o.GeocodeCacheStats())
	}
}

func TestOrchestrator_Geocode_Fallback(t *testing.T) {
	a := &mockProvider{name: "a", geoErr: &Error{Provider: "a", Err: ErrAddressNotFound}}
	b := &mockProvider{name: "b", geocoded: geo.Coordinate{Lat: 13.0, Lon: 80.2}}

	o := NewOrchestrator(OrchestratorConfig{Providers: []Provider{a, b}})

	coord, err := o.Geocode(context.Background(), "T. Nagar, Chennai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coord.Lat != 13.0 {
		t.Errorf("unexpected coordinate: %v", coord)
	}
}

func TestCanonicalAddress(t *testing.T) {
	if canonicalAddress("  12 Anna   Salai,  CHENNAI ") != "12 anna salai, chennai" {
		t.Errorf("unexpected canonical form: %q", canonicalAddress("  12 Anna   Salai,  CHENNAI "))
	}
	if canonicalAddress("   ") != "" {
		t.Error("whitespace-only address should canonicalize to empty")
	}
}
