package models

// ScoreLocationRequest asks for the safety score of a single point.
type ScoreLocationRequest struct {
	Point *Point     `json:"point"`
	At    *Timestamp `json:"at,omitempty"`
}

// ScoreLocationResponse is the scored point with its factor breakdown.
type ScoreLocationResponse struct {
	Score        float64        `json:"score"`
	Factors      []SafetyFactor `json:"factors"`
	ModelApplied bool           `json:"modelApplied"`
}

// SafetyFactor is one named contribution to a score.
type SafetyFactor struct {
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation,omitempty"`
}

// ScoreRouteRequest asks for the safety score of a path. Either an encoded
// polyline or an explicit point list must be supplied.
type ScoreRouteRequest struct {
	Polyline *string    `json:"polyline,omitempty"`
	Points   []Point    `json:"points,omitempty"`
	At       *Timestamp `json:"at,omitempty"`
}

// ScoreRouteResponse is the scored path.
type ScoreRouteResponse struct {
	Score         float64   `json:"score"`
	RiskLevel     RiskLevel `json:"riskLevel"`
	SampledPoints int       `json:"sampledPoints"`
}
