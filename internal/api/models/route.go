package models

// RouteOptimizeRequest is the request body for optimizing a delivery route.
// Stops are visited in the order given. Each stop needs either a point or an
// address to geocode.
type RouteOptimizeRequest struct {
	Start         *Point     `json:"start,omitempty"`
	StartAddress  *string    `json:"startAddress,omitempty"`
	Stops         []Stop     `json:"stops"`
	OptimizeFor   []string   `json:"optimizeFor,omitempty"`
	DepartureTime *Timestamp `json:"departureTime,omitempty"`
	RiderID       string     `json:"riderId,omitempty"`
}

// RouteOptimizeResponse is the response for route optimization.
type RouteOptimizeResponse struct {
	RouteID              string           `json:"routeId"`
	GeneratedAt          Timestamp        `json:"generatedAt"`
	Legs                 []Leg            `json:"legs"`
	TotalDistanceMeters  int              `json:"totalDistanceMeters"`
	TotalDurationSeconds int              `json:"totalDurationSeconds"`
	AverageSafetyScore   float64          `json:"averageSafetyScore"`
	Objectives           ObjectiveWeights `json:"objectives"`
}

// ObjectiveWeights reports the weighting applied to each objective.
type ObjectiveWeights struct {
	Time     float64 `json:"time"`
	Safety   float64 `json:"safety"`
	Distance float64 `json:"distance"`
}

// Leg is one hop of the optimized route.
type Leg struct {
	LegIndex        int          `json:"legIndex"`
	StopID          string       `json:"stopId,omitempty"`
	Origin          Point        `json:"origin"`
	Destination     Point        `json:"destination"`
	Selected        RouteOption  `json:"selected"`
	Alternatives    []RouteOption `json:"alternatives"`
	RLRecommendedID string       `json:"rlRecommendedId,omitempty"`
}

// RouteOption is one ranked candidate for a leg.
type RouteOption struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider"`
	Polyline        string    `json:"polyline,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	DistanceMeters  int       `json:"distanceMeters"`
	DurationSeconds int       `json:"durationSeconds"`
	SafetyScore     float64   `json:"safetyScore"`
	RiskLevel       RiskLevel `json:"riskLevel"`
	Cost            float64   `json:"cost"`
}
