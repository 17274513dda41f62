// Package crimerisk maintains an in-process geospatial risk surface built
// from per-district crime statistics, memoized on a coordinate grid.
package crimerisk

import (
	"errors"
	"time"

	"github.com/saferoute/saferoute/internal/geo"
)

// Service errors.
var (
	// ErrNoDistricts indicates the risk surface has not been loaded yet.
	ErrNoDistricts = errors.New("no crime districts loaded")
	// ErrDistrictNotFound indicates a lookup by name matched nothing.
	ErrDistrictNotFound = errors.New("crime district not found")
)

// District is one crime statistics zone, modeled as a circle around a
// centroid. RiskScore is pre-aggregated per district on a 0-100 scale where
// higher means more dangerous.
type District struct {
	ID            string
	Name          string
	Centroid      geo.Coordinate
	RadiusMeters  float64
	IncidentCount int
	RiskScore     float64
	UpdatedAt     time.Time
}

// Contains reports whether the point falls inside the district circle.
func (d *District) Contains(p geo.Coordinate) bool {
	return geo.Distance(d.Centroid, p) <= d.RadiusMeters
}

// PointRisk is the evaluated risk at one coordinate.
type PointRisk struct {
	// Risk is the combined risk value, clamped to [0, 100].
	Risk float64

	// Covered is false when no district reaches the point, in which case
	// Risk holds the configured neutral value.
	Covered bool

	// Contributions lists the districts that reached the point, strongest
	// first.
	Contributions []DistrictContribution
}

// DistrictContribution describes one district's share of a point's risk.
type DistrictContribution struct {
	Name         string
	Distance     float64 // meters from centroid
	Weight       float64 // linear decay factor in (0, 1]
	Contribution float64 // RiskScore * Weight
}
