package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
)

func coord(t *testing.T, lat, lon float64) geo.Coordinate {
	t.Helper()
	c, err := geo.NewCoordinate(lat, lon)
	require.NoError(t, err)
	return c
}

// fakeDirections returns one fixed candidate set per leg, in call order.
type fakeDirections struct {
	legs  [][]routing.Candidate
	err   error
	calls int
}

func (f *fakeDirections) GetDirections(_ context.Context, _ routing.DirectionsRequest) ([]routing.Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.legs) == 0 {
		return nil, routing.ErrRoutingUnavailable
	}
	leg := f.legs[0]
	f.legs = f.legs[1:]
	return leg, nil
}

// queueScorer returns queued safety scores in candidate-scoring order.
type queueScorer struct {
	scores []float64
}

func (q *queueScorer) ScoreRoute(_ context.Context, _ []geo.Coordinate, _ time.Time) (safety.RouteScore, error) {
	if len(q.scores) == 0 {
		return safety.RouteScore{Score: 50, Level: safety.RiskMedium, SampledPoints: 2}, nil
	}
	score := q.scores[0]
	q.scores = q.scores[1:]
	return safety.RouteScore{Score: score, Level: safety.BucketScore(score), SampledPoints: 2}, nil
}

func twoCandidates() []routing.Candidate {
	return []routing.Candidate{
		{ID: "fast", Provider: "a", DistanceMeters: 5000, DurationSeconds: 600},
		{ID: "safe", Provider: "a", DistanceMeters: 6200, DurationSeconds: 900},
	}
}

func singleStopRequest(t *testing.T, optimizeFor ...string) Request {
	t.Helper()
	return Request{
		Start:       coord(t, 13.0827, 80.2707),
		Stops:       []geo.Stop{{ID: "stop-1", Location: coord(t, 13.0067, 80.2206)}},
		OptimizeFor: optimizeFor,
	}
}

func TestOptimizeForTimePicksFaster(t *testing.T) {
	opt := New(Config{
		Directions: &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}},
		Scorer:     &queueScorer{scores: []float64{40, 90}},
	})

	route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t, "time"))
	require.NoError(t, err)
	assert.Equal(t, "fast", route.Legs[0].Selected.Candidate.ID)
}

func TestOptimizeForSafetyPicksSafer(t *testing.T) {
	opt := New(Config{
		Directions: &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}},
		Scorer:     &queueScorer{scores: []float64{40, 90}},
	})

	route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t, "safety"))
	require.NoError(t, err)
	assert.Equal(t, "safe", route.Legs[0].Selected.Candidate.ID)
}

func TestTieBreaksBySafetyThenDistance(t *testing.T) {
	candidates := []routing.Candidate{
		{ID: "a", Provider: "a", DistanceMeters: 5000, DurationSeconds: 600},
		{ID: "b", Provider: "a", DistanceMeters: 4800, DurationSeconds: 600},
		{ID: "c", Provider: "a", DistanceMeters: 4800, DurationSeconds: 600},
	}

	// Zero time weight and equal safety make every cost identical for b and
	// c; a loses on safety.
	opt := New(Config{
		Directions: &fakeDirections{legs: [][]routing.Candidate{candidates}},
		Scorer:     &queueScorer{scores: []float64{60, 70, 70}},
	})

	route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t, "safety"))
	require.NoError(t, err)

	ranked := route.Legs[0].Alternatives
	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].Candidate.ID)
	assert.Equal(t, "c", ranked[1].Candidate.ID)
	assert.Equal(t, "a", ranked[2].Candidate.ID)
}

func TestSelectionIsDeterministic(t *testing.T) {
	for i := 0; i < 5; i++ {
		opt := New(Config{
			Directions: &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}},
			Scorer:     &queueScorer{scores: []float64{55, 55}},
		})
		route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t))
		require.NoError(t, err)
		assert.Equal(t, "fast", route.Legs[0].Selected.Candidate.ID)
	}
}

func TestRoutingFailureNamesLeg(t *testing.T) {
	directions := &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}}
	opt := New(Config{Directions: directions, Scorer: &queueScorer{}})

	req := Request{
		Start: coord(t, 13.0827, 80.2707),
		Stops: []geo.Stop{
			{ID: "s1", Location: coord(t, 13.0500, 80.2400)},
			{ID: "s2", Location: coord(t, 13.0067, 80.2206)},
		},
		OptimizeFor: []string{"time"},
	}

	// The fake has candidates for one leg only; the second leg exhausts.
	route, err := opt.OptimizeRoute(context.Background(), req)
	assert.Nil(t, route)

	var failure *RoutingFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 1, failure.LegIndex)
	assert.ErrorIs(t, err, routing.ErrRoutingUnavailable)
}

func TestRecommenderRecordedWithoutOverriding(t *testing.T) {
	opt := New(Config{
		Directions: &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}},
		Scorer:     &queueScorer{scores: []float64{40, 90}},
		Recommender: RecommenderFunc(func(_ context.Context, leg LegResult) (string, error) {
			// Always prefer the last-ranked alternative.
			return leg.Alternatives[len(leg.Alternatives)-1].Candidate.ID, nil
		}),
	})

	route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t, "time"))
	require.NoError(t, err)

	leg := route.Legs[0]
	assert.Equal(t, "fast", leg.Selected.Candidate.ID)
	assert.Equal(t, "safe", leg.RLRecommendedID)
}

func TestRecommenderFailureIsIgnored(t *testing.T) {
	opt := New(Config{
		Directions: &fakeDirections{legs: [][]routing.Candidate{twoCandidates()}},
		Scorer:     &queueScorer{scores: []float64{40, 90}},
		Recommender: RecommenderFunc(func(context.Context, LegResult) (string, error) {
			return "", errors.New("recommender offline")
		}),
	})

	route, err := opt.OptimizeRoute(context.Background(), singleStopRequest(t, "time"))
	require.NoError(t, err)
	assert.Empty(t, route.Legs[0].RLRecommendedID)
}

func TestCancellationStopsFurtherLegs(t *testing.T) {
	directions := &fakeDirections{legs: [][]routing.Candidate{twoCandidates(), twoCandidates()}}
	opt := New(Config{Directions: directions, Scorer: &queueScorer{}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Start: coord(t, 13.0827, 80.2707),
		Stops: []geo.Stop{
			{ID: "s1", Location: coord(t, 13.0500, 80.2400)},
			{ID: "s2", Location: coord(t, 13.0067, 80.2206)},
		},
	}

	_, err := opt.OptimizeRoute(ctx, req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, directions.calls)
}

func TestOptimizeRouteValidation(t *testing.T) {
	opt := New(Config{Directions: &fakeDirections{}, Scorer: &queueScorer{}})

	_, err := opt.OptimizeRoute(context.Background(), Request{Start: coord(t, 13.05, 80.25)})
	assert.ErrorIs(t, err, ErrNoStops)

	_, err = opt.OptimizeRoute(context.Background(), Request{
		Start: coord(t, 13.05, 80.25),
		Stops: []geo.Stop{{ID: "bad", Location: geo.Coordinate{Lat: 95}}},
	})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestEndToEndAggregates(t *testing.T) {
	directions := &fakeDirections{legs: [][]routing.Candidate{
		twoCandidates(),
		{
			{ID: "only", Provider: "b", DistanceMeters: 3200, DurationSeconds: 420},
		},
	}}
	opt := New(Config{
		Directions: directions,
		Scorer:     &queueScorer{scores: []float64{40, 90, 75}},
	})

	req := Request{
		Start: coord(t, 13.0827, 80.2707),
		Stops: []geo.Stop{
			{ID: "s1", Location: coord(t, 13.0500, 80.2400)},
			{ID: "s2", Location: coord(t, 13.0067, 80.2206)},
		},
		OptimizeFor:   []string{"time", "safety"},
		DepartureTime: time.Date(2026, 3, 12, 9, 0, 0, 0, time.UTC),
	}

	route, err := opt.OptimizeRoute(context.Background(), req)
	require.NoError(t, err)

	assert.NotEmpty(t, route.RouteID)
	require.Len(t, route.Legs, 2)
	for _, leg := range route.Legs {
		assert.NotEmpty(t, leg.Alternatives)
		assert.Equal(t, leg.Selected, leg.Alternatives[0])
	}
	assert.Greater(t, route.TotalDistanceMeters, 0)
	assert.Greater(t, route.TotalDurationSeconds, 0)
	assert.GreaterOrEqual(t, route.AverageSafetyScore, 0.0)
	assert.LessOrEqual(t, route.AverageSafetyScore, 100.0)
}

func TestObjectivesFrom(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  Objectives
	}{
		{"empty defaults to time and safety", nil, Objectives{Time: 0.5, Safety: 0.5}},
		{"single objective", []string{"time"}, Objectives{Time: 1}},
		{"all three", []string{"time", "safety", "distance"}, Objectives{Time: 1.0 / 3, Safety: 1.0 / 3, Distance: 1.0 / 3}},
		{"duplicates count once", []string{"safety", "safety"}, Objectives{Safety: 1}},
		{"unknown names ignored", []string{"scenery"}, Objectives{Time: 0.5, Safety: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObjectivesFrom(tt.names)
			assert.InDelta(t, tt.want.Time, got.Time, 1e-9)
			assert.InDelta(t, tt.want.Safety, got.Safety, 1e-9)
			assert.InDelta(t, tt.want.Distance, got.Distance, 1e-9)
		})
	}
}
