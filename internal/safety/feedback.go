package safety

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/saferoute/saferoute/internal/geo"
)

// MemoryFeedbackSource is a fixed in-memory FeedbackSource.
type MemoryFeedbackSource struct {
	records []FeedbackRecord
}

// NewMemoryFeedbackSource creates a source over the given records.
func NewMemoryFeedbackSource(records ...FeedbackRecord) *MemoryFeedbackSource {
	return &MemoryFeedbackSource{records: records}
}

// ListFeedback returns all records.
func (m *MemoryFeedbackSource) ListFeedback(_ context.Context) ([]FeedbackRecord, error) {
	out := make([]FeedbackRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// PostgresFeedbackSource reads rider feedback rows written by the intake
// service. This system only consumes them.
type PostgresFeedbackSource struct {
	pool *pgxpool.Pool
}

// NewPostgresFeedbackSource creates a PostgreSQL feedback source.
func NewPostgresFeedbackSource(pool *pgxpool.Pool) *PostgresFeedbackSource {
	return &PostgresFeedbackSource{pool: pool}
}

// ListFeedback returns every feedback row.
func (r *PostgresFeedbackSource) ListFeedback(ctx context.Context) ([]FeedbackRecord, error) {
	query := `
		SELECT lat, lon, rating, time_of_day, feedback_type
		FROM rider_feedback
		ORDER BY time_of_day
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying rider feedback: %w", err)
	}
	defer rows.Close()

	var records []FeedbackRecord
	for rows.Next() {
		var (
			rec      FeedbackRecord
			lat, lon float64
			ftype    string
		)
		if err := rows.Scan(&lat, &lon, &rec.Rating, &rec.TimeOfDay, &ftype); err != nil {
			return nil, fmt.Errorf("scanning feedback row: %w", err)
		}
		rec.Location, err = geo.NewCoordinate(lat, lon)
		if err != nil {
			return nil, fmt.Errorf("feedback row: %w", err)
		}
		rec.Type = FeedbackType(ftype)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback rows: %w", err)
	}

	return records, nil
}
