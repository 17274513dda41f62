package crimerisk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saferoute/saferoute/internal/geo"
)

func coord(t *testing.T, lat, lon float64) geo.Coordinate {
	t.Helper()
	c, err := geo.NewCoordinate(lat, lon)
	require.NoError(t, err)
	return c
}

func testDistricts(t *testing.T) []District {
	t.Helper()
	return []District{
		{
			ID:            "d-tnagar",
			Name:          "T. Nagar",
			Centroid:      coord(t, 13.0418, 80.2341),
			RadiusMeters:  2000,
			IncidentCount: 480,
			RiskScore:     62,
			UpdatedAt:     time.Now(),
		},
		{
			ID:            "d-mylapore",
			Name:          "Mylapore",
			Centroid:      coord(t, 13.0336, 80.2687),
			RadiusMeters:  1800,
			IncidentCount: 150,
			RiskScore:     28,
			UpdatedAt:     time.Now(),
		},
	}
}

func newLoadedService(t *testing.T, districts []District) *Service {
	t.Helper()
	svc := NewService(ServiceConfig{
		Repository: NewMemoryRepository(districts...),
	})
	require.NoError(t, svc.Reload(context.Background()))
	return svc
}

func TestScorePointAtCentroid(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	// At the centroid the decay weight is 1, so risk equals the district score.
	risk, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2341))
	require.NoError(t, err)

	assert.True(t, risk.Covered)
	assert.InDelta(t, 62, risk.Risk, 0.5)
	require.NotEmpty(t, risk.Contributions)
	assert.Equal(t, "T. Nagar", risk.Contributions[0].Name)
}

func TestScorePointDecaysWithDistance(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	center, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2341))
	require.NoError(t, err)

	// Roughly 1km east of the centroid, still inside the 2km radius but in a
	// different grid cell.
	edge, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2433))
	require.NoError(t, err)

	assert.True(t, edge.Covered)
	assert.Less(t, edge.Risk, center.Risk)
	assert.Greater(t, edge.Risk, 0.0)
}

func TestScorePointUncoveredReturnsNeutral(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	// Far north of every district.
	risk, err := svc.ScorePoint(context.Background(), coord(t, 13.2500, 80.2341))
	require.NoError(t, err)

	assert.False(t, risk.Covered)
	assert.Equal(t, 35.0, risk.Risk)
	assert.Empty(t, risk.Contributions)
}

func TestScorePointClampedToScale(t *testing.T) {
	hot := []District{
		{ID: "a", Name: "A", Centroid: coord(t, 13.05, 80.25), RadiusMeters: 3000, RiskScore: 95},
		{ID: "b", Name: "B", Centroid: coord(t, 13.05, 80.25), RadiusMeters: 3000, RiskScore: 90},
	}
	svc := newLoadedService(t, hot)

	risk, err := svc.ScorePoint(context.Background(), coord(t, 13.05, 80.25))
	require.NoError(t, err)
	assert.Equal(t, 100.0, risk.Risk)
}

func TestScorePointMemoizesGridCell(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	first, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2341))
	require.NoError(t, err)

	// A different point in the same 0.01 degree cell returns the identical
	// memoized value.
	second, err := svc.ScorePoint(context.Background(), coord(t, 13.0421, 80.2348))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats := svc.Stats()
	assert.Equal(t, 1, stats.Cells)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestScorePointWithoutLoad(t *testing.T) {
	svc := NewService(ServiceConfig{Repository: NewMemoryRepository()})
	// Reload succeeds with zero districts but scoring refuses to answer.
	require.NoError(t, svc.Reload(context.Background()))

	_, err := svc.ScorePoint(context.Background(), coord(t, 13.05, 80.25))
	assert.ErrorIs(t, err, ErrNoDistricts)
}

func TestScorePointInvalidCoordinate(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	_, err := svc.ScorePoint(context.Background(), geo.Coordinate{Lat: 91, Lon: 0})
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestReloadDropsMemoizedCells(t *testing.T) {
	repo := NewMemoryRepository(testDistricts(t)...)
	svc := NewService(ServiceConfig{Repository: repo})
	require.NoError(t, svc.Reload(context.Background()))

	before, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2341))
	require.NoError(t, err)
	assert.InDelta(t, 62, before.Risk, 0.5)

	// The district cools down, reload picks the change up.
	require.NoError(t, repo.UpsertDistrict(context.Background(), District{
		ID:           "d-tnagar",
		Name:         "T. Nagar",
		Centroid:     coord(t, 13.0418, 80.2341),
		RadiusMeters: 2000,
		RiskScore:    20,
	}))
	require.NoError(t, svc.Reload(context.Background()))

	after, err := svc.ScorePoint(context.Background(), coord(t, 13.0418, 80.2341))
	require.NoError(t, err)
	assert.InDelta(t, 20, after.Risk, 0.5)
	assert.Equal(t, 1, svc.Stats().Cells)
}

func TestReloadPropagatesRepositoryError(t *testing.T) {
	svc := NewService(ServiceConfig{Repository: failingRepository{}})
	err := svc.Reload(context.Background())
	assert.Error(t, err)
}

type failingRepository struct{}

func (failingRepository) ListDistricts(context.Context) ([]District, error) {
	return nil, errors.New("connection refused")
}

func (failingRepository) UpsertDistrict(context.Context, District) error {
	return errors.New("connection refused")
}

func TestDistrictLookupByName(t *testing.T) {
	svc := newLoadedService(t, testDistricts(t))

	d, err := svc.District("Mylapore")
	require.NoError(t, err)
	assert.Equal(t, "d-mylapore", d.ID)

	_, err = svc.District("Velachery")
	assert.ErrorIs(t, err, ErrDistrictNotFound)
}
