package routing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
)

// OrchestratorConfig holds configuration for the maps orchestrator.
type OrchestratorConfig struct {
	// Providers is the fallback order. Providers without credentials must be
	// left out by the caller, never passed half-initialized.
	Providers []Provider

	// Logger for orchestrator operations.
	Logger zerolog.Logger

	// ProviderTimeout applies per provider call; a timed-out provider is
	// treated as unavailable and the walk advances (default 10s).
	ProviderTimeout time.Duration

	// RaceProviders fires every provider concurrently for the same leg and
	// accepts the first success. Off by default: it multiplies request
	// volume to paid upstreams.
	RaceProviders bool
}

// Orchestrator fronts the configured providers. Directions and geocoding
// walk the provider list in order and return the first usable result;
// transient upstream failures never cross this boundary, only exhaustion
// does.
type Orchestrator struct {
	providers       []Provider
	logger          zerolog.Logger
	providerTimeout time.Duration
	race            bool

	geocodeCache *geocodeCache
}

// NewOrchestrator creates an orchestrator over the given providers.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	timeout := cfg.ProviderTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Orchestrator{
		providers:       cfg.Providers,
		logger:          cfg.Logger,
		providerTimeout: timeout,
		race:            cfg.RaceProviders,
		geocodeCache:    newGeocodeCache(),
	}
}

// ProviderNames returns the configured fallback order.
func (o *Orchestrator) ProviderNames() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

// GetDirections returns candidates from the first provider that produces a
// non-empty list. Unavailable, rate-limited, and route-less providers all
// advance the walk; if every provider fails the call fails with
// ErrRoutingUnavailable.
func (o *Orchestrator) GetDirections(ctx context.Context, req DirectionsRequest) ([]Candidate, error) {
	if err := req.Origin.Validate(); err != nil {
		return nil, fmt.Errorf("origin: %w", err)
	}
	if err := req.Destination.Validate(); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	if len(o.providers) == 0 {
		return nil, ErrRoutingUnavailable
	}

	if o.race {
		return o.raceDirections(ctx, req)
	}

	for _, p := range o.providers {
		candidates, err := o.callProvider(ctx, p, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if fallthroughError(err) {
				o.logger.Warn().Err(err).
					Str("provider", p.Name()).
					Msg("provider failed, advancing to next")
				continue
			}
			return nil, err
		}
		if len(candidates) == 0 {
			o.logger.Warn().
				Str("provider", p.Name()).
				Msg("provider returned no candidates, advancing to next")
			continue
		}

		o.logger.Debug().
			Str("provider", p.Name()).
			Int("candidates", len(candidates)).
			Msg("directions resolved")
		return candidates, nil
	}

	return nil, ErrRoutingUnavailable
}

// raceDirections fires every provider concurrently and accepts the first
// non-empty result. Losing calls are cancelled.
func (o *Orchestrator) raceDirections(ctx context.Context, req DirectionsRequest) ([]Candidate, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		candidates []Candidate
		err        error
	}

	results := make(chan outcome, len(o.providers))
	for _, p := range o.providers {
		go func(p Provider) {
			candidates, err := o.callProvider(raceCtx, p, req)
			if err == nil && len(candidates) == 0 {
				err = &Error{Provider: p.Name(), Err: ErrNoRouteFound}
			}
			results <- outcome{candidates: candidates, err: err}
		}(p)
	}

	for range o.providers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-results:
			if res.err == nil {
				return res.candidates, nil
			}
			o.logger.Warn().Err(res.err).Msg("raced provider failed")
		}
	}

	return nil, ErrRoutingUnavailable
}

func (o *Orchestrator) callProvider(ctx context.Context, p Provider, req DirectionsRequest) ([]Candidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	candidates, err := p.GetDirections(callCtx, req)
	if err != nil {
		// A timeout is indistinguishable from an unreachable provider for
		// fallback purposes.
		if callCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Provider: p.Name(), Code: "TIMEOUT", Message: "provider call timed out", Err: ErrProviderUnavailable}
		}
		return nil, err
	}

	// Guarantee every candidate carries a stable identity for ranking and
	// external re-ranking hooks.
	for i := range candidates {
		if candidates[i].ID == "" {
			candidates[i].ID = fmt.Sprintf("%s-%d", p.Name(), i)
		}
		if candidates[i].Provider == "" {
			candidates[i].Provider = p.Name()
		}
	}

	return candidates, nil
}

// Geocode resolves an address through the provider fallback chain. Results
// are cached by canonicalized address for the process lifetime: a fixed
// address string maps to a fixed coordinate.
func (o *Orchestrator) Geocode(ctx context.Context, address string) (geo.Coordinate, error) {
	key := canonicalAddress(address)
	if key == "" {
		return geo.Coordinate{}, ErrAddressNotFound
	}

	if coord, ok := o.geocodeCache.get(key); ok {
		o.logger.Debug().Str("address", key).Msg("geocode cache hit")
		return coord, nil
	}

	if len(o.providers) == 0 {
		return geo.Coordinate{}, ErrRoutingUnavailable
	}

	for _, p := range o.providers {
		callCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
		coord, err := p.Geocode(callCtx, address)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return geo.Coordinate{}, ctx.Err()
			}
			if fallthroughError(err) {
				o.logger.Warn().Err(err).
					Str("provider", p.Name()).
					Msg("geocode failed, advancing to next")
				continue
			}
			return geo.Coordinate{}, err
		}

		o.geocodeCache.put(key, coord)
		return coord, nil
	}

	return geo.Coordinate{}, ErrRoutingUnavailable
}

// GeocodeCacheStats reports cache size for the ops surface.
func (o *Orchestrator) GeocodeCacheStats() int {
	return o.geocodeCache.len()
}
