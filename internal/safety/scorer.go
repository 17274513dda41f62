package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/crimerisk"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/pkg/polyline"
)

// RiskSource evaluates crime risk at a point.
type RiskSource interface {
	ScorePoint(ctx context.Context, p geo.Coordinate) (crimerisk.PointRisk, error)
}

// ScorerConfig holds configuration for the safety scorer.
type ScorerConfig struct {
	// CrimeRisk is the crime risk source (required).
	CrimeRisk RiskSource

	// Stations is the police station index (required, may be empty).
	Stations *StationIndex

	// Feedback supplies rider feedback for the local history signal
	// (optional).
	Feedback FeedbackSource

	// Logger for scorer operations.
	Logger zerolog.Logger

	// ModelBlendWeight is the share of the final score taken from the
	// trained model, in [0, 1). The heuristic keeps the remainder as an
	// explainable floor (default: 0.4).
	ModelBlendWeight float64

	// ModelPath and ScalerPath locate the persisted artifact pair. Empty
	// paths mean heuristic-only scoring.
	ModelPath  string
	ScalerPath string

	// MaxRouteSamples bounds how many path points ScoreRoute evaluates
	// (default: 12).
	MaxRouteSamples int

	// PoliceCutoffMeters is the distance beyond which a station stops
	// contributing (default: 3000).
	PoliceCutoffMeters float64

	// FeedbackRadiusMeters is how close past feedback must be to count as
	// local history (default: 500).
	FeedbackRadiusMeters float64
}

// Heuristic term magnitudes on the 0-100 safety scale.
const (
	maxPoliceBonus      = 15.0
	nightPenalty        = 15.0
	duskPenalty         = 7.0
	feedbackScale       = 5.0 // (avg rating - 3) * scale, so -10..+10
	neutralRating       = 3.0
	defaultBlendWeight  = 0.4
	defaultRouteSamples = 12
)

// Scorer computes safety scores. The trained model snapshot is held behind
// an atomic pointer so retraining swaps it without blocking inference.
type Scorer struct {
	crimeRisk            RiskSource
	stations             *StationIndex
	feedbackSource       FeedbackSource
	logger               zerolog.Logger
	blendWeight          float64
	modelPath            string
	scalerPath           string
	maxRouteSamples      int
	policeCutoffMeters   float64
	feedbackRadiusMeters float64

	model atomic.Pointer[Snapshot]

	feedbackMu sync.RWMutex
	feedback   []FeedbackRecord
}

// NewScorer creates a scorer and attempts to load the model artifact pair.
// A missing or corrupt artifact is not fatal: the scorer logs a warning and
// serves heuristic-only scores until a retrain succeeds.
func NewScorer(cfg ScorerConfig) *Scorer {
	blendWeight := cfg.ModelBlendWeight
	if blendWeight == 0 {
		blendWeight = defaultBlendWeight
	}
	maxRouteSamples := cfg.MaxRouteSamples
	if maxRouteSamples == 0 {
		maxRouteSamples = defaultRouteSamples
	}
	policeCutoff := cfg.PoliceCutoffMeters
	if policeCutoff == 0 {
		policeCutoff = 3000
	}
	feedbackRadius := cfg.FeedbackRadiusMeters
	if feedbackRadius == 0 {
		feedbackRadius = 500
	}
	stations := cfg.Stations
	if stations == nil {
		stations = NewStationIndex()
	}

	s := &Scorer{
		crimeRisk:            cfg.CrimeRisk,
		stations:             stations,
		feedbackSource:       cfg.Feedback,
		logger:               cfg.Logger,
		blendWeight:          blendWeight,
		modelPath:            cfg.ModelPath,
		scalerPath:           cfg.ScalerPath,
		maxRouteSamples:      maxRouteSamples,
		policeCutoffMeters:   policeCutoff,
		feedbackRadiusMeters: feedbackRadius,
	}

	if cfg.ModelPath != "" && cfg.ScalerPath != "" {
		snapshot, err := LoadSnapshot(cfg.ModelPath, cfg.ScalerPath)
		if err != nil {
			s.logger.Warn().Err(err).Msg("safety model not loaded, scoring heuristic-only")
		} else {
			s.model.Store(snapshot)
			s.logger.Info().
				Str("version", snapshot.Version).
				Time("trained_at", snapshot.TrainedAt).
				Msg("safety model loaded")
		}
	}

	return s
}

// RefreshFeedback replaces the local feedback snapshot from the source.
func (s *Scorer) RefreshFeedback(ctx context.Context) error {
	if s.feedbackSource == nil {
		return nil
	}

	records, err := s.feedbackSource.ListFeedback(ctx)
	if err != nil {
		return fmt.Errorf("refreshing feedback: %w", err)
	}

	s.feedbackMu.Lock()
	s.feedback = records
	s.feedbackMu.Unlock()

	s.logger.Debug().Int("records", len(records)).Msg("feedback snapshot refreshed")
	return nil
}

// ModelVersion returns the active model version, or empty when running
// heuristic-only.
func (s *Scorer) ModelVersion() string {
	if snap := s.model.Load(); snap != nil {
		return snap.Version
	}
	return ""
}

// ScoreLocation evaluates the safety of a single coordinate. The zero time
// skips the time-of-day term. The returned factor list always explains the
// full heuristic, and the model adjustment when a model is active.
func (s *Scorer) ScoreLocation(ctx context.Context, p geo.Coordinate, at time.Time) (LocationScore, error) {
	if err := p.Validate(); err != nil {
		return LocationScore{}, err
	}

	features, factors, heuristic, err := s.evaluateHeuristic(ctx, p, at)
	if err != nil {
		return LocationScore{}, err
	}

	result := LocationScore{Score: heuristic, Factors: factors}

	if snap := s.model.Load(); snap != nil {
		modelScore := snap.Score(features)
		blended := (1-s.blendWeight)*heuristic + s.blendWeight*modelScore
		result.Factors = append(result.Factors, SafetyFactor{
			Name:         "model_blend",
			Contribution: blended - heuristic,
			Explanation:  fmt.Sprintf("trained model %s weighted at %.2f", snap.Version, s.blendWeight),
		})
		result.Score = clampScore(blended)
		result.ModelApplied = true
	}

	return result, nil
}

// ScoreRoute evaluates a path by scoring a bounded number of evenly spaced
// points along it and averaging.
func (s *Scorer) ScoreRoute(ctx context.Context, coords []geo.Coordinate, at time.Time) (RouteScore, error) {
	if len(coords) == 0 {
		return RouteScore{}, ErrEmptyPath
	}

	path := make([]polyline.Coordinate, len(coords))
	for i, c := range coords {
		path[i] = polyline.Coordinate{Lat: c.Lat, Lon: c.Lon}
	}
	samples := polyline.SampleN(path, s.maxRouteSamples)

	var total float64
	for _, p := range samples {
		if err := ctx.Err(); err != nil {
			return RouteScore{}, err
		}
		loc, err := s.ScoreLocation(ctx, geo.Coordinate{Lat: p.Lat, Lon: p.Lon}, at)
		if err != nil {
			return RouteScore{}, err
		}
		total += loc.Score
	}

	avg := total / float64(len(samples))
	return RouteScore{
		Score:         avg,
		Level:         BucketScore(avg),
		SampledPoints: len(samples),
	}, nil
}

// evaluateHeuristic computes the raw feature vector, the factor breakdown,
// and the heuristic safety subtotal for a point.
func (s *Scorer) evaluateHeuristic(ctx context.Context, p geo.Coordinate, at time.Time) ([]float64, []SafetyFactor, float64, error) {
	features := make([]float64, featureCount)
	factors := make([]SafetyFactor, 0, 4)
	score := 100.0

	// Crime risk subtracts directly from a perfect score. A risk surface
	// with no loaded districts degrades to the neutral value rather than
	// failing the whole scoring request.
	risk, err := s.crimeRisk.ScorePoint(ctx, p)
	if err != nil {
		if !errors.Is(err, crimerisk.ErrNoDistricts) {
			return nil, nil, 0, err
		}
		risk = crimerisk.PointRisk{Risk: 35}
		s.logger.Warn().Msg("no crime districts loaded, using neutral risk")
	}
	features[featureCrimeRisk] = risk.Risk
	score -= risk.Risk
	factors = append(factors, SafetyFactor{
		Name:         "crime_risk",
		Contribution: -risk.Risk,
		Explanation:  crimeExplanation(risk),
	})

	// Police proximity contributes positively, decaying linearly to zero at
	// the cutoff radius.
	policeBonus := 0.0
	policeDistance := s.policeCutoffMeters
	station, dist, ok := s.stations.Nearest(p)
	if ok && dist <= s.policeCutoffMeters {
		policeBonus = maxPoliceBonus * (1 - dist/s.policeCutoffMeters)
		policeDistance = dist
		factors = append(factors, SafetyFactor{
			Name:         "police_proximity",
			Contribution: policeBonus,
			Explanation:  fmt.Sprintf("%s is %.0fm away", station.Name, dist),
		})
	} else {
		factors = append(factors, SafetyFactor{
			Name:         "police_proximity",
			Contribution: 0,
			Explanation:  "no station within cutoff radius",
		})
	}
	features[featurePoliceDistance] = policeDistance
	score += policeBonus

	// Time of day, when supplied.
	nightFactor, timePenalty, timeExplanation := timeOfDayTerm(at)
	features[featureNight] = nightFactor
	score -= timePenalty
	factors = append(factors, SafetyFactor{
		Name:         "time_of_day",
		Contribution: -timePenalty,
		Explanation:  timeExplanation,
	})

	// Local feedback history.
	avgRating, count := s.localFeedback(p)
	feedbackTerm := (avgRating - neutralRating) * feedbackScale
	features[featureFeedback] = avgRating
	score += feedbackTerm
	factors = append(factors, SafetyFactor{
		Name:         "rider_feedback",
		Contribution: feedbackTerm,
		Explanation:  feedbackExplanation(avgRating, count),
	})

	return features, factors, clampScore(score), nil
}

// localFeedback averages the ratings of feedback recorded near the point.
// With no nearby records the signal is neutral.
func (s *Scorer) localFeedback(p geo.Coordinate) (avgRating float64, count int) {
	s.feedbackMu.RLock()
	defer s.feedbackMu.RUnlock()

	total := 0
	for _, rec := range s.feedback {
		if geo.Distance(rec.Location, p) <= s.feedbackRadiusMeters {
			total += rec.Rating
			count++
		}
	}
	if count == 0 {
		return neutralRating, 0
	}
	return float64(total) / float64(count), count
}

// timeOfDayTerm maps a timestamp to the night feature and its penalty. The
// zero time means no timestamp was supplied.
func timeOfDayTerm(at time.Time) (nightFactor, penalty float64, explanation string) {
	if at.IsZero() {
		return 0, 0, "no departure time supplied"
	}

	hour := at.Hour()
	switch {
	case hour >= 21 || hour < 5:
		return 1, nightPenalty, "late night hours"
	case hour >= 18 || hour < 7:
		return 0.5, duskPenalty, "dusk or dawn hours"
	default:
		return 0, 0, "daytime hours"
	}
}

func crimeExplanation(risk crimerisk.PointRisk) string {
	if !risk.Covered {
		return "no district coverage, neutral risk assumed"
	}
	if len(risk.Contributions) > 0 {
		return fmt.Sprintf("dominated by %s district", risk.Contributions[0].Name)
	}
	return "district crime statistics"
}

func feedbackExplanation(avgRating float64, count int) string {
	if count == 0 {
		return "no rider feedback nearby"
	}
	return fmt.Sprintf("%d nearby reports averaging %.1f/5", count, avgRating)
}
