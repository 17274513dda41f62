// Package worker provides background job processing for SafeRoute.
package worker

import (
	"time"
)

// WarmTarget represents a delivery zone whose risk grid cells are
// pre-computed ahead of the evening rush.
type WarmTarget struct {
	// Name is the human-readable name of the zone.
	Name string

	// Points are the lat/lon coordinates to warm.
	// Typically restaurant clusters and high-order residential areas.
	Points []Point

	// Priority determines warm order (lower = higher priority).
	Priority int
}

// Point represents a geographic coordinate.
type Point struct {
	Lat float64
	Lon float64
}

// MaintenanceConfig holds configuration for the maintenance jobs.
type MaintenanceConfig struct {
	// Targets are the delivery zones to warm.
	// If empty, uses DefaultWarmTargets.
	Targets []WarmTarget

	// Concurrency is the number of concurrent warm operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each point operation.
	// Default: 30 seconds
	Timeout time.Duration

	// WarmCells enables risk grid cell warming after a district reload.
	// Default: true
	WarmCells bool

	// MinFeedbackSamples is the minimum number of feedback records
	// required before a retrain is attempted.
	// Default: 50
	MinFeedbackSamples int
}

// DefaultMaintenanceConfig returns the default maintenance configuration.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Targets:            DefaultWarmTargets(),
		Concurrency:        3,
		Timeout:            30 * time.Second,
		WarmCells:          true,
		MinFeedbackSamples: 50,
	}
}

// DefaultWarmTargets returns the default warm targets for Chennai.
// Covers the densest delivery zones and the main restaurant corridors.
func DefaultWarmTargets() []WarmTarget {
	return []WarmTarget{
		{
			Name:     "T. Nagar",
			Priority: 1,
			Points: []Point{
				{Lat: 13.0418, Lon: 80.2341}, // Pondy Bazaar
				{Lat: 13.0382, Lon: 80.2247}, // Usman Road
				{Lat: 13.0456, Lon: 80.2423}, // Residential east
			},
		},
		{
			Name:     "Anna Nagar",
			Priority: 1,
			Points: []Point{
				{Lat: 13.0850, Lon: 80.2101}, // Anna Nagar Tower
				{Lat: 13.0912, Lon: 80.2215}, // Shanthi Colony
				{Lat: 13.0786, Lon: 80.1992}, // West extension
			},
		},
		{
			Name:     "Velachery",
			Priority: 1,
			Points: []Point{
				{Lat: 12.9815, Lon: 80.2180}, // Phoenix MarketCity
				{Lat: 12.9756, Lon: 80.2207}, // Velachery main road
			},
		},
		{
			Name:     "Adyar",
			Priority: 2,
			Points: []Point{
				{Lat: 13.0067, Lon: 80.2575}, // Adyar signal
				{Lat: 13.0012, Lon: 80.2565}, // Indira Nagar
			},
		},
		{
			Name:     "Mylapore",
			Priority: 2,
			Points: []Point{
				{Lat: 13.0336, Lon: 80.2687}, // Luz Corner
			},
		},
		{
			Name:     "OMR Thoraipakkam",
			Priority: 2,
			Points: []Point{
				{Lat: 12.9399, Lon: 80.2349}, // Thoraipakkam junction
				{Lat: 12.9121, Lon: 80.2275}, // Sholinganallur
			},
		},
		{
			Name:     "Porur",
			Priority: 3,
			Points: []Point{
				{Lat: 13.0381, Lon: 80.1565}, // Porur junction
			},
		},
		{
			Name:     "Tambaram",
			Priority: 3,
			Points: []Point{
				{Lat: 12.9249, Lon: 80.1000}, // Tambaram sanatorium
			},
		},
		{
			Name:     "Central",
			Priority: 3,
			Points: []Point{
				{Lat: 13.0827, Lon: 80.2707}, // Chennai Central
				{Lat: 13.0694, Lon: 80.2636}, // Egmore
			},
		},
	}
}

// AllPoints returns all points from all targets, ordered by priority.
func (c MaintenanceConfig) AllPoints() []Point {
	var points []Point
	for _, target := range c.Targets {
		points = append(points, target.Points...)
	}
	return points
}

// TotalPoints returns the total number of points to warm.
func (c MaintenanceConfig) TotalPoints() int {
	total := 0
	for _, target := range c.Targets {
		total += len(target.Points)
	}
	return total
}
