package crimerisk

import (
	"context"
	"sync"
)

// Repository loads district records from a backing store.
type Repository interface {
	// ListDistricts returns every known district.
	ListDistricts(ctx context.Context) ([]District, error)

	// UpsertDistrict inserts or replaces a district by ID.
	UpsertDistrict(ctx context.Context, d District) error
}

// MemoryRepository is an in-memory Repository for tests and for deployments
// that ship district data as a static file.
type MemoryRepository struct {
	mu        sync.RWMutex
	districts map[string]District
}

// NewMemoryRepository creates a repository seeded with the given districts.
func NewMemoryRepository(districts ...District) *MemoryRepository {
	m := &MemoryRepository{districts: make(map[string]District, len(districts))}
	for _, d := range districts {
		m.districts[d.ID] = d
	}
	return m
}

// ListDistricts returns all districts.
func (m *MemoryRepository) ListDistricts(_ context.Context) ([]District, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]District, 0, len(m.districts))
	for _, d := range m.districts {
		out = append(out, d)
	}
	return out, nil
}

// UpsertDistrict inserts or replaces a district.
func (m *MemoryRepository) UpsertDistrict(_ context.Context, d District) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.districts[d.ID] = d
	return nil
}
