package safety

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saferoute/saferoute/internal/geo"
)

// Station is one police or safety station in the reference index.
type Station struct {
	ID       string
	Name     string
	Location geo.Coordinate
}

// StationRepository loads station records from a backing store.
type StationRepository interface {
	ListStations(ctx context.Context) ([]Station, error)
}

// StationIndex answers nearest-station queries over a loaded snapshot.
// Station counts are small, so lookups are a linear scan.
type StationIndex struct {
	mu       sync.RWMutex
	stations []Station
}

// NewStationIndex creates an index over the given stations.
func NewStationIndex(stations ...Station) *StationIndex {
	return &StationIndex{stations: stations}
}

// Load replaces the snapshot from the repository.
func (idx *StationIndex) Load(ctx context.Context, repo StationRepository) error {
	stations, err := repo.ListStations(ctx)
	if err != nil {
		return fmt.Errorf("loading stations: %w", err)
	}

	idx.mu.Lock()
	idx.stations = stations
	idx.mu.Unlock()
	return nil
}

// Nearest returns the closest station to the point and its distance in
// meters. ok is false when the index is empty.
func (idx *StationIndex) Nearest(p geo.Coordinate) (station Station, distance float64, ok bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := -1.0
	for _, s := range idx.stations {
		d := geo.Distance(s.Location, p)
		if best < 0 || d < best {
			best = d
			station = s
		}
	}
	if best < 0 {
		return Station{}, 0, false
	}
	return station, best, true
}

// Len returns the number of loaded stations.
func (idx *StationIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.stations)
}

// MemoryStationRepository is an in-memory StationRepository.
type MemoryStationRepository struct {
	stations []Station
}

// NewMemoryStationRepository creates a repository over a fixed station set.
func NewMemoryStationRepository(stations ...Station) *MemoryStationRepository {
	return &MemoryStationRepository{stations: stations}
}

// ListStations returns all stations.
func (m *MemoryStationRepository) ListStations(_ context.Context) ([]Station, error) {
	out := make([]Station, len(m.stations))
	copy(out, m.stations)
	return out, nil
}

// PostgresStationRepository is a PostgreSQL StationRepository.
type PostgresStationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStationRepository creates a PostgreSQL station repository.
func NewPostgresStationRepository(pool *pgxpool.Pool) *PostgresStationRepository {
	return &PostgresStationRepository{pool: pool}
}

// ListStations returns every station row.
func (r *PostgresStationRepository) ListStations(ctx context.Context) ([]Station, error) {
	query := `
		SELECT station_id, name, lat, lon
		FROM police_stations
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying police stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		var (
			s        Station
			lat, lon float64
		)
		if err := rows.Scan(&s.ID, &s.Name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("scanning station row: %w", err)
		}
		s.Location, err = geo.NewCoordinate(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("station %s: %w", s.ID, err)
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating station rows: %w", err)
	}

	return stations, nil
}
