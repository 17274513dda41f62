package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/saferoute/saferoute/internal/crimerisk"
	"github.com/saferoute/saferoute/internal/geo"
	"github.com/saferoute/saferoute/internal/safety"
)

// RiskSurface is the slice of the crime risk service the worker needs.
// Satisfied by crimerisk.Service.
type RiskSurface interface {
	Reload(ctx context.Context) error
	ScorePoint(ctx context.Context, p geo.Coordinate) (crimerisk.PointRisk, error)
	Stats() crimerisk.Stats
}

// Trainer is the slice of the safety scorer the worker needs.
// Satisfied by safety.Scorer.
type Trainer interface {
	RetrainWithFeedback(ctx context.Context, records []safety.FeedbackRecord) (*safety.Snapshot, error)
	RefreshFeedback(ctx context.Context) error
	ModelVersion() string
}

// MaintenanceJob handles district reload, grid warming and model retrain
// operations.
type MaintenanceJob struct {
	config MaintenanceConfig
	logger zerolog.Logger

	// Services (optional, nil if not configured)
	riskSurface RiskSurface
	trainer     Trainer
	feedback    safety.FeedbackSource

	// Metrics
	metrics *MaintenanceMetrics
}

// MaintenanceMetrics tracks maintenance job statistics.
type MaintenanceMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalWarms      int64
	WarmedCells     int64
	FailedCells     int64
	DistrictReloads int64
	Retrains        int64
	FailedRetrains  int64

	// Timings
	LastWarmAt       time.Time
	LastWarmDuration time.Duration
	LastRetrainAt    time.Time

	// Model state
	ModelVersion string
}

// MaintenanceJobConfig holds configuration for creating a MaintenanceJob.
type MaintenanceJobConfig struct {
	Config      MaintenanceConfig
	Logger      zerolog.Logger
	RiskSurface RiskSurface
	Trainer     Trainer
	Feedback    safety.FeedbackSource
}

// NewMaintenanceJob creates a new maintenance job processor.
func NewMaintenanceJob(cfg MaintenanceJobConfig) *MaintenanceJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config.Targets = DefaultWarmTargets()
	}
	if config.Concurrency == 0 {
		config.Concurrency = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MinFeedbackSamples == 0 {
		config.MinFeedbackSamples = 50
	}

	return &MaintenanceJob{
		config:      config,
		logger:      cfg.Logger,
		riskSurface: cfg.RiskSurface,
		trainer:     cfg.Trainer,
		feedback:    cfg.Feedback,
		metrics:     &MaintenanceMetrics{},
	}
}

// WarmResult contains the result of a grid warming pass.
type WarmResult struct {
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	TotalPoints int
	Warmed      int
	Failed      int
	Errors      []WarmError
}

// WarmError represents an error during warming.
type WarmError struct {
	Point Point
	Error string
}

// WarmGrid pre-computes risk grid cells for all configured targets.
func (j *MaintenanceJob) WarmGrid(ctx context.Context) *WarmResult {
	startTime := time.Now()
	result := &WarmResult{
		StartTime:   startTime,
		TotalPoints: j.config.TotalPoints(),
	}

	j.logger.Info().
		Int("total_points", result.TotalPoints).
		Int("concurrency", j.config.Concurrency).
		Msg("starting grid warm job")

	points := j.config.AllPoints()

	pointsChan := make(chan Point, len(points))
	resultsChan := make(chan pointResult, len(points))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.warmWorker(ctx, pointsChan, resultsChan)
		}()
	}

	for _, p := range points {
		pointsChan <- p
	}
	close(pointsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for pr := range resultsChan {
		if pr.err == nil {
			result.Warmed++
		} else {
			result.Failed++
			result.Errors = append(result.Errors, WarmError{Point: pr.point, Error: pr.err.Error()})
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.recordWarm(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("warmed", result.Warmed).
		Int("failed", result.Failed).
		Msg("grid warm job completed")

	return result
}

type pointResult struct {
	point Point
	err   error
}

func (j *MaintenanceJob) warmWorker(ctx context.Context, points <-chan Point, results chan<- pointResult) {
	for point := range points {
		select {
		case <-ctx.Done():
			return
		default:
			results <- pointResult{point: point, err: j.warmPoint(ctx, point)}
		}
	}
}

func (j *MaintenanceJob) warmPoint(ctx context.Context, point Point) error {
	if j.riskSurface == nil {
		return nil
	}

	pointCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	coord, err := geo.NewCoordinate(point.Lat, point.Lon)
	if err != nil {
		return err
	}

	_, err = j.riskSurface.ScorePoint(pointCtx, coord)
	if errors.Is(err, crimerisk.ErrNoDistricts) {
		// Nothing loaded yet, the reload job will warm later.
		return nil
	}
	return err
}

// ReloadDistricts rebuilds the crime risk surface from the repository and
// re-warms the grid for the configured targets.
func (j *MaintenanceJob) ReloadDistricts(ctx context.Context) error {
	if j.riskSurface == nil {
		return errors.New("risk surface not configured")
	}

	if err := j.riskSurface.Reload(ctx); err != nil {
		return fmt.Errorf("reloading districts: %w", err)
	}

	j.metrics.mu.Lock()
	j.metrics.DistrictReloads++
	j.metrics.mu.Unlock()

	stats := j.riskSurface.Stats()
	j.logger.Info().
		Int("districts", stats.Districts).
		Msg("district snapshot reloaded")

	if j.config.WarmCells {
		result := j.WarmGrid(ctx)
		if result.Failed > result.Warmed {
			return fmt.Errorf("too many warm failures after reload: %d/%d", result.Failed, result.TotalPoints)
		}
	}
	return nil
}

// RetrainModel refreshes rider feedback and retrains the scoring model.
func (j *MaintenanceJob) RetrainModel(ctx context.Context) error {
	if j.trainer == nil || j.feedback == nil {
		return errors.New("trainer not configured")
	}

	records, err := j.feedback.ListFeedback(ctx)
	if err != nil {
		return fmt.Errorf("listing feedback: %w", err)
	}

	if len(records) < j.config.MinFeedbackSamples {
		j.logger.Info().
			Int("records", len(records)).
			Int("required", j.config.MinFeedbackSamples).
			Msg("not enough feedback for retrain, skipping")
		return nil
	}

	snapshot, err := j.trainer.RetrainWithFeedback(ctx, records)
	if err != nil {
		j.metrics.mu.Lock()
		j.metrics.FailedRetrains++
		j.metrics.mu.Unlock()
		return fmt.Errorf("retraining model: %w", err)
	}

	// Pick up the freshly stored feedback for the heuristic term too.
	if err := j.trainer.RefreshFeedback(ctx); err != nil {
		j.logger.Warn().Err(err).Msg("feedback refresh after retrain failed")
	}

	j.metrics.mu.Lock()
	j.metrics.Retrains++
	j.metrics.LastRetrainAt = time.Now()
	j.metrics.ModelVersion = snapshot.Version
	j.metrics.mu.Unlock()

	j.logger.Info().
		Str("model_version", snapshot.Version).
		Int("samples", snapshot.SampleCount).
		Msg("model retrained")

	return nil
}

func (j *MaintenanceJob) recordWarm(result *WarmResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalWarms++
	j.metrics.WarmedCells += int64(result.Warmed)
	j.metrics.FailedCells += int64(result.Failed)
	j.metrics.LastWarmAt = result.EndTime
	j.metrics.LastWarmDuration = result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *MaintenanceJob) GetMetrics() MaintenanceMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return MaintenanceMetrics{
		TotalWarms:       j.metrics.TotalWarms,
		WarmedCells:      j.metrics.WarmedCells,
		FailedCells:      j.metrics.FailedCells,
		DistrictReloads:  j.metrics.DistrictReloads,
		Retrains:         j.metrics.Retrains,
		FailedRetrains:   j.metrics.FailedRetrains,
		LastWarmAt:       j.metrics.LastWarmAt,
		LastWarmDuration: j.metrics.LastWarmDuration,
		LastRetrainAt:    j.metrics.LastRetrainAt,
		ModelVersion:     j.metrics.ModelVersion,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *MaintenanceJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_warms":        m.TotalWarms,
		"warmed_cells":       m.WarmedCells,
		"failed_cells":       m.FailedCells,
		"district_reloads":   m.DistrictReloads,
		"retrains":           m.Retrains,
		"failed_retrains":    m.FailedRetrains,
		"last_warm_at":       m.LastWarmAt,
		"last_warm_duration": m.LastWarmDuration.String(),
		"last_retrain_at":    m.LastRetrainAt,
		"model_version":      m.ModelVersion,
	}
}
