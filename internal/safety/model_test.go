package safety

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Model: Model{
			Weights:   []float64{-8, -3, -5, 6},
			Intercept: 60,
		},
		Scaler: Scaler{
			Means: []float64{35, 1500, 0.3, 3},
			Stds:  []float64{20, 900, 0.4, 1},
		},
		Version:     "test-version",
		TrainedAt:   time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC),
		SampleCount: 200,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	scalerPath := filepath.Join(dir, "scaler.json")

	original := testSnapshot()
	require.NoError(t, SaveSnapshot(original, modelPath, scalerPath))

	loaded, err := LoadSnapshot(modelPath, scalerPath)
	require.NoError(t, err)
	assert.Equal(t, original.Model, loaded.Model)
	assert.Equal(t, original.Scaler, loaded.Scaler)
	assert.Equal(t, original.Version, loaded.Version)
	assert.Equal(t, original.SampleCount, loaded.SampleCount)
}

func TestLoadSnapshotMissingArtifact(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSnapshot(filepath.Join(dir, "missing.json"), filepath.Join(dir, "scaler.json"))
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoadSnapshotCorruptArtifact(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	scalerPath := filepath.Join(dir, "scaler.json")

	require.NoError(t, SaveSnapshot(testSnapshot(), modelPath, scalerPath))
	require.NoError(t, os.WriteFile(modelPath, []byte("not json"), 0o644))

	_, err := LoadSnapshot(modelPath, scalerPath)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestLoadSnapshotDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.json")
	scalerPath := filepath.Join(dir, "scaler.json")

	bad := testSnapshot()
	bad.Model.Weights = []float64{1, 2}
	require.NoError(t, SaveSnapshot(bad, modelPath, scalerPath))

	_, err := LoadSnapshot(modelPath, scalerPath)
	assert.ErrorIs(t, err, ErrModelUnavailable)
}

func TestSnapshotScoreClamped(t *testing.T) {
	snap := testSnapshot()

	// Extreme inputs must never escape the 0-100 scale.
	high := snap.Score([]float64{0, 0, 0, 5})
	low := snap.Score([]float64{100, 3000, 1, 1})
	assert.LessOrEqual(t, high, 100.0)
	assert.GreaterOrEqual(t, low, 0.0)
}

func TestScalerZeroStdIsSafe(t *testing.T) {
	s := Scaler{Means: []float64{10, 0, 0, 0}, Stds: []float64{0, 1, 1, 1}}
	out := s.Transform([]float64{10, 1, 2, 3})
	assert.Equal(t, 0.0, out[0])
}
