package safety

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Feature vector layout shared by the scorer, the model, and retraining.
// Order matters: persisted weights and scaler statistics are positional.
const (
	featureCrimeRisk = iota
	featurePoliceDistance
	featureNight
	featureFeedback
	featureCount
)

// Scaler standardizes a raw feature vector to zero mean and unit variance
// using statistics captured at training time.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// Transform returns the standardized copy of features.
func (s *Scaler) Transform(features []float64) []float64 {
	scaled := make([]float64, len(features))
	for i, v := range features {
		std := s.Stds[i]
		if std == 0 {
			std = 1
		}
		scaled[i] = (v - s.Means[i]) / std
	}
	return scaled
}

// Model is a linear regressor over the standardized feature vector,
// producing a safety value on the 0-100 scale.
type Model struct {
	Weights   []float64 `json:"weights"`
	Intercept float64   `json:"intercept"`
}

// Predict evaluates the model on a standardized feature vector.
func (m *Model) Predict(scaled []float64) float64 {
	out := m.Intercept
	for i, w := range m.Weights {
		out += w * scaled[i]
	}
	return out
}

// Snapshot is one immutable trained model plus its scaler. Scoring requests
// read whichever snapshot is current; retraining builds a replacement
// out-of-band and swaps it in one step.
type Snapshot struct {
	Model       Model     `json:"model"`
	Scaler      Scaler    `json:"-"`
	Version     string    `json:"version"`
	TrainedAt   time.Time `json:"trained_at"`
	SampleCount int       `json:"sample_count"`
}

// Score runs the full scale-then-predict pipeline, clamped to [0, 100].
func (s *Snapshot) Score(features []float64) float64 {
	return clampScore(s.Model.Predict(s.Scaler.Transform(features)))
}

// LoadSnapshot reads the model/scaler artifact pair. Any missing, corrupt,
// or dimensionally inconsistent artifact yields ErrModelUnavailable.
func LoadSnapshot(modelPath, scalerPath string) (*Snapshot, error) {
	snapshot := &Snapshot{}

	if err := readJSON(modelPath, snapshot); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if err := readJSON(scalerPath, &snapshot.Scaler); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	if len(snapshot.Model.Weights) != featureCount ||
		len(snapshot.Scaler.Means) != featureCount ||
		len(snapshot.Scaler.Stds) != featureCount {
		return nil, fmt.Errorf("%w: artifact dimensions do not match feature vector", ErrModelUnavailable)
	}

	return snapshot, nil
}

// SaveSnapshot persists the artifact pair. Each file is written to a
// temporary sibling and renamed into place, so a crash mid-write never
// corrupts a live artifact.
func SaveSnapshot(snapshot *Snapshot, modelPath, scalerPath string) error {
	if err := writeJSONAtomic(modelPath, snapshot); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}
	if err := writeJSONAtomic(scalerPath, &snapshot.Scaler); err != nil {
		return fmt.Errorf("writing scaler artifact: %w", err)
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSONAtomic(path string, in any) error {
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
