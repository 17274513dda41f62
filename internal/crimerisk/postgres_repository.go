package crimerisk

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saferoute/saferoute/internal/geo"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL district repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListDistricts returns every district row.
func (r *PostgresRepository) ListDistricts(ctx context.Context) ([]District, error) {
	query := `
		SELECT district_id, name, centroid_lat, centroid_lon,
		       radius_meters, incident_count, risk_score, updated_at
		FROM crime_districts
		ORDER BY name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying crime districts: %w", err)
	}
	defer rows.Close()

	var districts []District
	for rows.Next() {
		var (
			d        District
			lat, lon float64
		)
		err := rows.Scan(
			&d.ID,
			&d.Name,
			&lat,
			&lon,
			&d.RadiusMeters,
			&d.IncidentCount,
			&d.RiskScore,
			&d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning district row: %w", err)
		}

		d.Centroid, err = geo.NewCoordinate(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("district %s: %w", d.ID, err)
		}
		districts = append(districts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating district rows: %w", err)
	}

	return districts, nil
}

// UpsertDistrict inserts or replaces a district by ID.
func (r *PostgresRepository) UpsertDistrict(ctx context.Context, d District) error {
	query := `
		INSERT INTO crime_districts (
			district_id, name, centroid_lat, centroid_lon,
			radius_meters, incident_count, risk_score, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (district_id) DO UPDATE SET
			name = EXCLUDED.name,
			centroid_lat = EXCLUDED.centroid_lat,
			centroid_lon = EXCLUDED.centroid_lon,
			radius_meters = EXCLUDED.radius_meters,
			incident_count = EXCLUDED.incident_count,
			risk_score = EXCLUDED.risk_score,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.Name,
		d.Centroid.Lat,
		d.Centroid.Lon,
		d.RadiusMeters,
		d.IncidentCount,
		d.RiskScore,
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upserting district %s: %w", d.ID, err)
	}
	return nil
}
