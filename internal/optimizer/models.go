// Package optimizer assembles multi-stop delivery routes by requesting
// candidates per leg, scoring each against time and safety objectives, and
// selecting deterministically.
package optimizer

import (
	"fmt"
	"time"

	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/routing"
	"github.com/saferoute/saferoute/internal/safety"
)

// Objective names accepted in optimize_for.
const (
	ObjectiveTime     = "time"
	ObjectiveSafety   = "safety"
	ObjectiveDistance = "distance"
)

// Objectives holds the relative weight of each scoring component. Weights
// sum to 1.
type Objectives struct {
	Time     float64 `json:"time"`
	Safety   float64 `json:"safety"`
	Distance float64 `json:"distance"`
}

// ObjectivesFrom builds weights from caller-supplied objective names. Named
// objectives share weight equally; unnamed ones get zero. An empty list
// defaults to equal time and safety weighting. Unknown names are ignored.
func ObjectivesFrom(names []string) Objectives {
	var obj Objectives
	counted := 0
	for _, name := range names {
		switch name {
		case ObjectiveTime:
			if obj.Time == 0 {
				obj.Time = 1
				counted++
			}
		case ObjectiveSafety:
			if obj.Safety == 0 {
				obj.Safety = 1
				counted++
			}
		case ObjectiveDistance:
			if obj.Distance == 0 {
				obj.Distance = 1
				counted++
			}
		}
	}

	if counted == 0 {
		return Objectives{Time: 0.5, Safety: 0.5}
	}

	share := 1 / float64(counted)
	obj.Time *= share
	obj.Safety *= share
	obj.Distance *= share
	return obj
}

// Request is one optimize_route call. Stops are visited in the order given.
type Request struct {
	Start         geo.Coordinate
	Stops         []geo.Stop
	OptimizeFor   []string
	DepartureTime time.Time
	RiderID       string
}

// ScoredCandidate is one leg candidate with its evaluated components.
type ScoredCandidate struct {
	Candidate routing.Candidate `json:"candidate"`

	// SafetyScore is the route safety value in [0, 100], higher is safer.
	SafetyScore float64          `json:"safety_score"`
	RiskLevel   safety.RiskLevel `json:"risk_level"`

	// NormalizedTime is duration relative to the fastest candidate of the
	// leg (1 for the fastest).
	NormalizedTime float64 `json:"normalized_time"`

	// NormalizedDistance is distance relative to the shortest candidate.
	NormalizedDistance float64 `json:"normalized_distance"`

	// Cost is the weighted scalar used for selection, lower is better.
	Cost float64 `json:"cost"`
}

// LegResult is the outcome for one origin to destination hop.
type LegResult struct {
	LegIndex    int            `json:"leg_index"`
	Origin      geo.Coordinate `json:"origin"`
	Destination geo.Coordinate `json:"destination"`
	StopID      string         `json:"stop_id,omitempty"`

	// Selected is the winning candidate.
	Selected ScoredCandidate `json:"selected"`

	// Alternatives is the full candidate list ranked best first, including
	// the selected one at index 0.
	Alternatives []ScoredCandidate `json:"alternatives"`

	// RLRecommendedID records an external recommender's preference, if one
	// is configured. It never overrides Selected.
	RLRecommendedID string `json:"rl_recommended_id,omitempty"`
}

// OptimizedRoute is a fully assembled multi-stop route.
type OptimizedRoute struct {
	RouteID              string      `json:"route_id"`
	Legs                 []LegResult `json:"legs"`
	Objectives           Objectives  `json:"objectives"`
	TotalDistanceMeters  int         `json:"total_distance_meters"`
	TotalDurationSeconds int         `json:"total_duration_seconds"`
	AverageSafetyScore   float64     `json:"average_safety_score"`
	CreatedAt            time.Time   `json:"created_at"`
}

// RoutingFailure is returned when a leg has no candidates. A route missing
// one leg is not deliverable, so no partial OptimizedRoute accompanies it.
type RoutingFailure struct {
	LegIndex int
	Err      error
}

func (f *RoutingFailure) Error() string {
	return fmt.Sprintf("routing failed for leg %d: %v", f.LegIndex, f.Err)
}

func (f *RoutingFailure) Unwrap() error {
	return f.Err
}
