package optimizer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
	"github.com/saferoute/saferoute/pkg/polyline"
)

// ErrNoStops indicates an optimize request without any stops.
var ErrNoStops = errors.New("route has no stops")

// Directions supplies leg candidates. Satisfied by routing.Orchestrator.
type Directions interface {
	GetDirections(ctx context.Context, req routing.DirectionsRequest) ([]routing.Candidate, error)
}

// RouteScorer evaluates path safety. Satisfied by safety.Scorer.
type RouteScorer interface {
	ScoreRoute(ctx context.Context, coords []geo.Coordinate, at time.Time) (safety.RouteScore, error)
}

// Config holds optimizer dependencies.
type Config struct {
	// Directions is the candidate source (required).
	Directions Directions

	// Scorer is the safety scorer (required).
	Scorer RouteScorer

	// Recommender is the optional external re-ranking collaborator.
	Recommender Recommender

	// Logger for optimizer operations.
	Logger zerolog.Logger
}

// Optimizer builds optimized multi-stop routes.
type Optimizer struct {
	directions  Directions
	scorer      RouteScorer
	recommender Recommender
	logger      zerolog.Logger
}

// New creates an optimizer.
func New(cfg Config) *Optimizer {
	return &Optimizer{
		directions:  cfg.Directions,
		scorer:      cfg.Scorer,
		recommender: cfg.Recommender,
		logger:      cfg.Logger,
	}
}

// OptimizeRoute builds the route leg by leg, in caller-supplied stop order.
// Legs are processed sequentially so provider fallback stays deterministic;
// cancellation stops before the next leg and fails the whole call.
func (o *Optimizer) OptimizeRoute(ctx context.Context, req Request) (*OptimizedRoute, error) {
	if err := req.Start.Validate(); err != nil {
		return nil, err
	}
	if len(req.Stops) == 0 {
		return nil, ErrNoStops
	}
	for _, stop := range req.Stops {
		if err := stop.Location.Validate(); err != nil {
			return nil, fmt.Errorf("stop %s: %w", stop.ID, err)
		}
	}

	objectives := ObjectivesFrom(req.OptimizeFor)
	route := &OptimizedRoute{
		RouteID:    uuid.NewString(),
		Objectives: objectives,
		CreatedAt:  time.Now(),
	}

	origin := req.Start
	var safetyTotal float64

	for i, stop := range req.Stops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		leg, err := o.optimizeLeg(ctx, i, origin, stop, objectives, req.DepartureTime)
		if err != nil {
			return nil, err
		}

		route.Legs = append(route.Legs, leg)
		route.TotalDistanceMeters += leg.Selected.Candidate.DistanceMeters
		route.TotalDurationSeconds += leg.Selected.Candidate.DurationSeconds
		safetyTotal += leg.Selected.SafetyScore
		origin = stop.Location
	}

	route.AverageSafetyScore = safetyTotal / float64(len(route.Legs))

	o.logger.Info().
		Str("route_id", route.RouteID).
		Int("legs", len(route.Legs)).
		Int("distance_m", route.TotalDistanceMeters).
		Int("duration_s", route.TotalDurationSeconds).
		Float64("avg_safety", route.AverageSafetyScore).
		Msg("route optimized")

	return route, nil
}

// optimizeLeg fetches, scores, and ranks candidates for one leg.
func (o *Optimizer) optimizeLeg(ctx context.Context, index int, origin geo.Coordinate, stop geo.Stop, objectives Objectives, departure time.Time) (LegResult, error) {
	candidates, err := o.directions.GetDirections(ctx, routing.DirectionsRequest{
		Origin:       origin,
		Destination:  stop.Location,
		Alternatives: true,
	})
	if err != nil {
		return LegResult{}, &RoutingFailure{LegIndex: index, Err: err}
	}
	if len(candidates) == 0 {
		return LegResult{}, &RoutingFailure{LegIndex: index, Err: routing.ErrRoutingUnavailable}
	}

	scored, err := o.scoreCandidates(ctx, candidates, origin, stop.Location, departure)
	if err != nil {
		return LegResult{}, err
	}

	rank(scored, objectives)

	leg := LegResult{
		LegIndex:     index,
		Origin:       origin,
		Destination:  stop.Location,
		StopID:       stop.ID,
		Selected:     scored[0],
		Alternatives: scored,
	}

	if o.recommender != nil {
		recommended, err := o.recommender.Recommend(ctx, leg)
		if err != nil {
			o.logger.Warn().Err(err).Int("leg", index).Msg("recommender failed, ignoring")
		} else {
			leg.RLRecommendedID = recommended
		}
	}

	return leg, nil
}

// scoreCandidates computes safety and normalized components for every
// candidate of a leg.
func (o *Optimizer) scoreCandidates(ctx context.Context, candidates []routing.Candidate, origin, destination geo.Coordinate, departure time.Time) ([]ScoredCandidate, error) {
	fastest := candidates[0].DurationSeconds
	shortest := candidates[0].DistanceMeters
	for _, c := range candidates[1:] {
		if c.DurationSeconds < fastest {
			fastest = c.DurationSeconds
		}
		if c.DistanceMeters < shortest {
			shortest = c.DistanceMeters
		}
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		path := candidatePath(c, origin, destination)
		routeScore, err := o.scorer.ScoreRoute(ctx, path, departure)
		if err != nil {
			return nil, fmt.Errorf("scoring candidate %s: %w", c.ID, err)
		}

		sc := ScoredCandidate{
			Candidate:          c,
			SafetyScore:        routeScore.Score,
			RiskLevel:          routeScore.Level,
			NormalizedTime:     normalize(c.DurationSeconds, fastest),
			NormalizedDistance: normalize(c.DistanceMeters, shortest),
		}
		scored = append(scored, sc)
	}
	return scored, nil
}

// rank computes each candidate's cost and sorts best first. Ties break by
// higher safety, then shorter distance, then original provider order.
func rank(scored []ScoredCandidate, objectives Objectives) {
	for i := range scored {
		sc := &scored[i]
		sc.Cost = objectives.Time*(sc.NormalizedTime-1) +
			objectives.Safety*(1-sc.SafetyScore/100) +
			objectives.Distance*(sc.NormalizedDistance-1)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if a.SafetyScore != b.SafetyScore {
			return a.SafetyScore > b.SafetyScore
		}
		if a.Candidate.DistanceMeters != b.Candidate.DistanceMeters {
			return a.Candidate.DistanceMeters < b.Candidate.DistanceMeters
		}
		return false
	})
}

// candidatePath decodes the candidate geometry, falling back to the leg
// endpoints when a provider returned no polyline.
func candidatePath(c routing.Candidate, origin, destination geo.Coordinate) []geo.Coordinate {
	decoded := polyline.Decode(c.GeometryPolyline)
	if len(decoded) == 0 {
		return []geo.Coordinate{origin, destination}
	}

	path := make([]geo.Coordinate, len(decoded))
	for i, p := range decoded {
		path[i] = geo.Coordinate{Lat: p.Lat, Lon: p.Lon}
	}
	return path
}

func normalize(value, best int) float64 {
	if best <= 0 {
		return 1
	}
	return float64(value) / float64(best)
}
