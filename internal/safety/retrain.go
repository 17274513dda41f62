package safety

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ridgeLambda stabilizes the normal equations when features are correlated
// or a batch is small.
const ridgeLambda = 1e-3

// RetrainWithFeedback fits a new model/scaler pair from rider feedback and,
// only on success, swaps it in as the active snapshot. Training runs
// entirely off the scoring path: no lock is held and in-flight requests keep
// using the previous snapshot until the single pointer store.
func (s *Scorer) RetrainWithFeedback(ctx context.Context, records []FeedbackRecord) (*Snapshot, error) {
	samples, labels, err := s.buildTrainingSet(ctx, records)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrInsufficientFeedback
	}

	scaler := fitScaler(samples)
	scaled := make([][]float64, len(samples))
	for i, features := range samples {
		scaled[i] = scaler.Transform(features)
	}

	weights, intercept, err := fitLinear(scaled, labels)
	if err != nil {
		return nil, fmt.Errorf("fitting model: %w", err)
	}

	snapshot := &Snapshot{
		Model:       Model{Weights: weights, Intercept: intercept},
		Scaler:      scaler,
		Version:     uuid.NewString(),
		TrainedAt:   time.Now(),
		SampleCount: len(samples),
	}

	if s.modelPath != "" && s.scalerPath != "" {
		if err := SaveSnapshot(snapshot, s.modelPath, s.scalerPath); err != nil {
			return nil, err
		}
	}

	s.model.Store(snapshot)
	s.logger.Info().
		Str("version", snapshot.Version).
		Int("samples", snapshot.SampleCount).
		Msg("safety model retrained")

	return snapshot, nil
}

// buildTrainingSet converts feedback rows into labeled feature vectors.
// Records with invalid coordinates or out-of-range ratings are skipped.
func (s *Scorer) buildTrainingSet(ctx context.Context, records []FeedbackRecord) ([][]float64, []float64, error) {
	var (
		samples [][]float64
		labels  []float64
	)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if rec.Rating < 1 || rec.Rating > 5 {
			continue
		}
		if rec.Location.Validate() != nil {
			continue
		}

		features, _, _, err := s.evaluateHeuristic(ctx, rec.Location, rec.TimeOfDay)
		if err != nil {
			return nil, nil, err
		}

		samples = append(samples, features)
		// Rating 1..5 maps onto the 0-100 safety scale.
		labels = append(labels, float64(rec.Rating-1)/4*100)
	}

	return samples, labels, nil
}

// fitScaler captures per-feature mean and standard deviation.
func fitScaler(samples [][]float64) Scaler {
	n := float64(len(samples))
	means := make([]float64, featureCount)
	stds := make([]float64, featureCount)

	for _, features := range samples {
		for i, v := range features {
			means[i] += v
		}
	}
	for i := range means {
		means[i] /= n
	}

	for _, features := range samples {
		for i, v := range features {
			d := v - means[i]
			stds[i] += d * d
		}
	}
	for i := range stds {
		stds[i] = math.Sqrt(stds[i] / n)
	}

	return Scaler{Means: means, Stds: stds}
}

// fitLinear solves ridge-regularized least squares on standardized features.
// With zero-mean features the intercept is the label mean.
func fitLinear(scaled [][]float64, labels []float64) ([]float64, float64, error) {
	n := float64(len(labels))

	intercept := 0.0
	for _, y := range labels {
		intercept += y
	}
	intercept /= n

	// Normal equations: (X'X + lambda*I) w = X'(y - mean(y)).
	var (
		gram [featureCount][featureCount]float64
		rhs  [featureCount]float64
	)
	for k, features := range scaled {
		yc := labels[k] - intercept
		for i := 0; i < featureCount; i++ {
			rhs[i] += features[i] * yc
			for j := 0; j < featureCount; j++ {
				gram[i][j] += features[i] * features[j]
			}
		}
	}
	for i := 0; i < featureCount; i++ {
		gram[i][i] += ridgeLambda
	}

	weights, err := solveSymmetric(gram, rhs)
	if err != nil {
		return nil, 0, err
	}
	return weights, intercept, nil
}

// solveSymmetric runs Gaussian elimination with partial pivoting on the
// small fixed-size system.
func solveSymmetric(a [featureCount][featureCount]float64, b [featureCount]float64) ([]float64, error) {
	for col := 0; col < featureCount; col++ {
		pivot := col
		for row := col + 1; row < featureCount; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular feature matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < featureCount; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < featureCount; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	weights := make([]float64, featureCount)
	for row := featureCount - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < featureCount; k++ {
			sum -= a[row][k] * weights[k]
		}
		weights[row] = sum / a[row][row]
	}
	return weights, nil
}
