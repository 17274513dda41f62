// Package geo provides the geographic value types shared across the service.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate indicates a latitude or longitude outside its valid range.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate represents a geographic point. It is an immutable value type;
// construct it with NewCoordinate to enforce range invariants.
type Coordinate struct {
	Lat float64
	Lon float64
}

// NewCoordinate builds a Coordinate, rejecting out-of-range values.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks that the coordinate is within valid ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]: %w", c.Lat, ErrInvalidCoordinate)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]: %w", c.Lon, ErrInvalidCoordinate)
	}
	return nil
}

// GridKey returns the cache key for the grid cell containing the coordinate
// at the given cell size in degrees. Two coordinates within the same cell
// share a key.
func (c Coordinate) GridKey(cellSize float64) string {
	lat := math.Floor(c.Lat/cellSize) * cellSize
	lon := math.Floor(c.Lon/cellSize) * cellSize
	return fmt.Sprintf("%.2f,%.2f", lat, lon)
}

// Stop is one destination within a multi-stop route request. Stops are
// created by the caller and treated as immutable for the duration of one
// optimization.
type Stop struct {
	ID       string
	Location Coordinate
	Address  string
	Priority int
}

const earthRadiusMeters = 6371000

// Distance returns the haversine distance between two coordinates in meters.
func Distance(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)

	h := sinDLat*sinDLat + math.Cos(lat1)*math.Cos(lat2)*sinDLon*sinDLon
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
