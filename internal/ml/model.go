package ml

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/BurntSushi/toml"
)

// weightsFile is the TOML layout of a trained model's parameters. Training
// happens offline; this package only loads and applies the result.
type weightsFile struct {
	Bias    float64   `toml:"bias"`
	Weights []float64 `toml:"weights"`
}

// LogisticModel scores a feature vector with a logistic regression. A model
// without loaded weights is valid and predicts 0, the lowest risk
// contribution: scoring is an enhancement signal, never a required one.
type LogisticModel struct {
	weights [FeatureCount]float64
	bias    float64
	loaded  bool
	logger  *slog.Logger
}

// NewModel creates an uninitialized model that always predicts 0.
func NewModel(logger *slog.Logger) *LogisticModel {
	return &LogisticModel{logger: logger}
}

// LoadModel reads model parameters from a TOML weights file.
func LoadModel(path string, logger *slog.Logger) (*LogisticModel, error) {
	var file weightsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("loading model weights: %w", err)
	}
	if len(file.Weights) != FeatureCount {
		return nil, fmt.Errorf("model weights: expected %d values, got %d", FeatureCount, len(file.Weights))
	}

	m := &LogisticModel{bias: file.Bias, loaded: true, logger: logger}
	copy(m.weights[:], file.Weights)
	return m, nil
}

// Loaded reports whether the model has trained parameters.
func (m *LogisticModel) Loaded() bool { return m.loaded }

// Predict returns a risk score in [0,1] for the given features. Feature
// extraction failures and an uninitialized model both degrade to 0 rather
// than failing the surrounding analysis.
func (m *LogisticModel) Predict(_ context.Context, f TransactionFeatures) float64 {
	if !m.loaded {
		return 0
	}

	v, err := f.Vector()
	if err != nil {
		m.logger.Warn("feature extraction failed", "error", err)
		return 0
	}

	z := m.bias
	for i, w := range m.weights {
		z += w * v[i]
	}

	score := 1 / (1 + math.Exp(-z))
	if math.IsNaN(score) {
		return 0
	}
	return math.Min(1, math.Max(0, score))
}
