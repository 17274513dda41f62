package crimerisk

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/geo"
)

// ServiceConfig holds configuration for the crime risk service.
type ServiceConfig struct {
	// Repository is the district data source.
	Repository Repository

	// Logger for service operations.
	Logger zerolog.Logger

	// GridCellSize is the memoization cell size in degrees (default: 0.01,
	// roughly 1.1km at the equator).
	GridCellSize float64

	// NeutralRisk is returned for points no district reaches (default: 35).
	NeutralRisk float64
}

// Service evaluates crime risk at coordinates. District data is held as an
// immutable snapshot, and per-point results are memoized on a coordinate
// grid so nearby lookups collapse into one computation.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	gridCellSize float64
	neutralRisk  float64

	mu        sync.RWMutex
	districts []District
	loadedAt  time.Time
	cells     map[string]PointRisk
	hits      uint64
	misses    uint64
}

// NewService creates a crime risk service. Call Reload before scoring.
func NewService(cfg ServiceConfig) *Service {
	gridCellSize := cfg.GridCellSize
	if gridCellSize == 0 {
		gridCellSize = 0.01
	}
	neutralRisk := cfg.NeutralRisk
	if neutralRisk == 0 {
		neutralRisk = 35
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		gridCellSize: gridCellSize,
		neutralRisk:  neutralRisk,
		cells:        make(map[string]PointRisk),
	}
}

// Reload replaces the district snapshot from the repository and drops every
// memoized cell. Safe to call while lookups are in flight.
func (s *Service) Reload(ctx context.Context) error {
	districts, err := s.repo.ListDistricts(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load crime districts")
		return err
	}

	s.mu.Lock()
	s.districts = districts
	s.loadedAt = time.Now()
	s.cells = make(map[string]PointRisk)
	s.hits = 0
	s.misses = 0
	s.mu.Unlock()

	s.logger.Info().Int("districts", len(districts)).Msg("crime district snapshot loaded")
	return nil
}

// ScorePoint returns the risk at a coordinate. Results within the same grid
// cell are served from the memo after the first computation.
func (s *Service) ScorePoint(_ context.Context, p geo.Coordinate) (PointRisk, error) {
	if err := p.Validate(); err != nil {
		return PointRisk{}, err
	}

	key := p.GridKey(s.gridCellSize)

	s.mu.RLock()
	if len(s.districts) == 0 {
		s.mu.RUnlock()
		return PointRisk{}, ErrNoDistricts
	}
	if cached, ok := s.cells[key]; ok {
		s.mu.RUnlock()
		s.recordHit()
		return cached, nil
	}
	districts := s.districts
	s.mu.RUnlock()

	risk := s.evaluate(districts, p)

	s.mu.Lock()
	// Another goroutine may have filled the cell while we computed, or a
	// reload may have swapped the snapshot. Keep whichever entry is present.
	if cached, ok := s.cells[key]; ok {
		s.mu.Unlock()
		return cached, nil
	}
	s.cells[key] = risk
	s.misses++
	s.mu.Unlock()

	return risk, nil
}

// District returns the loaded district with the given name.
func (s *Service) District(name string) (District, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.districts {
		if d.Name == name {
			return d, nil
		}
	}
	return District{}, ErrDistrictNotFound
}

// Stats describes the memo cache and the loaded snapshot.
type Stats struct {
	Districts int       `json:"districts"`
	LoadedAt  time.Time `json:"loaded_at"`
	Cells     int       `json:"cells"`
	Hits      uint64    `json:"hits"`
	Misses    uint64    `json:"misses"`
}

// Stats returns cache counters.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Districts: len(s.districts),
		LoadedAt:  s.loadedAt,
		Cells:     len(s.cells),
		Hits:      s.hits,
		Misses:    s.misses,
	}
}

func (s *Service) recordHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
}

// evaluate sums the contribution of every district whose circle reaches the
// point. Contribution decays linearly from the centroid to the rim.
func (s *Service) evaluate(districts []District, p geo.Coordinate) PointRisk {
	var (
		total         float64
		contributions []DistrictContribution
	)

	for i := range districts {
		d := &districts[i]
		if d.RadiusMeters <= 0 {
			continue
		}
		dist := geo.Distance(d.Centroid, p)
		if dist > d.RadiusMeters {
			continue
		}

		weight := 1 - dist/d.RadiusMeters
		contribution := d.RiskScore * weight
		total += contribution
		contributions = append(contributions, DistrictContribution{
			Name:         d.Name,
			Distance:     dist,
			Weight:       weight,
			Contribution: contribution,
		})
	}

	if len(contributions) == 0 {
		return PointRisk{Risk: s.neutralRisk, Covered: false}
	}

	sort.Slice(contributions, func(i, j int) bool {
		return contributions[i].Contribution > contributions[j].Contribution
	})

	return PointRisk{
		Risk:          clamp(total, 0, 100),
		Covered:       true,
		Contributions: contributions,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
