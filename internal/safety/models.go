// Package safety computes explainable safety scores for coordinates and
// paths, blending heuristic signals with a trained model snapshot that can
// be retrained from rider feedback at runtime.
package safety

import (
	"context"
	"errors"
	"time"

	"github.com/saferoute/saferoute/internal/geo"
)

// Scorer errors.
var (
	// ErrModelUnavailable indicates no trained model artifact could be
	// loaded. Scoring degrades to heuristic-only output.
	ErrModelUnavailable = errors.New("safety model unavailable")
	// ErrInsufficientFeedback indicates retraining was requested with no
	// usable samples. The active model is left untouched.
	ErrInsufficientFeedback = errors.New("insufficient feedback for retraining")
	// ErrEmptyPath indicates a route scoring request with no coordinates.
	ErrEmptyPath = errors.New("path has no coordinates")
)

// RiskLevel buckets a route safety score.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk bucket thresholds on the 0-100 safety scale (higher is safer).
const (
	lowRiskThreshold    = 70.0
	mediumRiskThreshold = 40.0
)

// BucketScore maps a safety score to a discrete risk level.
func BucketScore(score float64) RiskLevel {
	switch {
	case score >= lowRiskThreshold:
		return RiskLow
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// SafetyFactor is one named contribution to a location score, so callers
// can audit which signal dominated.
type SafetyFactor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// LocationScore is the result of scoring a single coordinate.
type LocationScore struct {
	// Score is the blended safety value in [0, 100], higher is safer.
	Score float64 `json:"score"`

	// Factors lists every contributing term in evaluation order.
	Factors []SafetyFactor `json:"factors"`

	// ModelApplied is false when the scorer is running heuristic-only.
	ModelApplied bool `json:"model_applied"`
}

// RouteScore is the result of scoring a path.
type RouteScore struct {
	// Score is the mean of the sampled location scores.
	Score float64 `json:"score"`

	// Level buckets the score into low, medium, or high risk.
	Level RiskLevel `json:"risk_level"`

	// SampledPoints is the number of path points actually scored.
	SampledPoints int `json:"sampled_points"`
}

// FeedbackType categorizes a rider report.
type FeedbackType string

const (
	FeedbackGeneral  FeedbackType = "general"
	FeedbackIncident FeedbackType = "incident"
	FeedbackLighting FeedbackType = "lighting"
)

// FeedbackRecord is one rider safety report, used both as a local signal
// when scoring nearby points and as a training sample when retraining.
type FeedbackRecord struct {
	Location  geo.Coordinate
	Rating    int // 1 (felt unsafe) to 5 (felt safe)
	TimeOfDay time.Time
	Type      FeedbackType
}

// FeedbackSource supplies feedback records on demand. This system does not
// persist feedback itself.
type FeedbackSource interface {
	ListFeedback(ctx context.Context) ([]FeedbackRecord, error)
}
