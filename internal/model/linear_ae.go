// Package model provides the reconstruction scorer used by the detector.
//
// LinearAE is a linear autoencoder: each sample is standardized, projected
// onto k latent components and reconstructed from them. The anomaly score of
// a window is the mean squared reconstruction error over all of its samples
// and features. Weights are trained elsewhere and shipped as a TOML file.
package model

import (
	"fmt"
	"math"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/smukkama/gridguard/internal/telemetry"
)

// FeatureCount is the number of features taken from each sample:
// active power, reactive power, elapsed seconds.
const FeatureCount = 3

var ErrInvalidModel = &ModelError{"invalid model"}

// ModelError represents a model loading error
type ModelError struct {
	msg string
}

func (e *ModelError) Error() string {
	return e.msg
}

// Weights is the on-disk form of a LinearAE.
type Weights struct {
	Name    string      `toml:"name"`
	Mean    []float64   `toml:"mean"`
	Scale   []float64   `toml:"scale"`
	Encoder [][]float64 `toml:"encoder"`
}

// LinearAE scores windows by reconstruction error. It is immutable once
// loaded and safe for concurrent use.
type LinearAE struct {
	name    string
	mean    [FeatureCount]float64
	scale   [FeatureCount]float64
	encoder [][FeatureCount]float64
}

// Load reads and validates weights from a TOML file
func Load(path string) (*LinearAE, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model weights: %w", err)
	}

	var w Weights
	if _, err := toml.Decode(string(data), &w); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidModel, path, err)
	}
	return New(w)
}

// New builds a LinearAE from in-memory weights.
func New(w Weights) (*LinearAE, error) {
	if len(w.Mean) != FeatureCount || len(w.Scale) != FeatureCount {
		return nil, fmt.Errorf("%w: mean and scale need %d entries", ErrInvalidModel, FeatureCount)
	}
	if len(w.Encoder) == 0 {
		return nil, fmt.Errorf("%w: encoder has no components", ErrInvalidModel)
	}

	m := &LinearAE{name: w.Name}
	for i := 0; i < FeatureCount; i++ {
		if w.Scale[i] <= 0 || !finite(w.Scale[i]) || !finite(w.Mean[i]) {
			return nil, fmt.Errorf("%w: feature %d has mean %v scale %v", ErrInvalidModel, i, w.Mean[i], w.Scale[i])
		}
		m.mean[i] = w.Mean[i]
		m.scale[i] = w.Scale[i]
	}
	for r, row := range w.Encoder {
		if len(row) != FeatureCount {
			return nil, fmt.Errorf("%w: encoder row %d has %d columns", ErrInvalidModel, r, len(row))
		}
		var comp [FeatureCount]float64
		for c, v := range row {
			if !finite(v) {
				return nil, fmt.Errorf("%w: encoder[%d][%d] is %v", ErrInvalidModel, r, c, v)
			}
			comp[c] = v
		}
		m.encoder = append(m.encoder, comp)
	}
	return m, nil
}

func (m *LinearAE) Name() string {
	return m.name
}

// Score implements detector.Scorer.
func (m *LinearAE) Score(window []telemetry.Sample) (float64, error) {
	if len(window) == 0 {
		return 0, fmt.Errorf("empty window")
	}

	var sum float64
	for _, s := range window {
		z := m.standardize(s)

		var recon [FeatureCount]float64
		for _, comp := range m.encoder {
			var latent float64
			for i := range z {
				latent += comp[i] * z[i]
			}
			for i := range recon {
				recon[i] += comp[i] * latent
			}
		}

		for i := range z {
			d := recon[i] - z[i]
			sum += d * d
		}
	}
	return sum / float64(len(window)*FeatureCount), nil
}

func (m *LinearAE) standardize(s telemetry.Sample) [FeatureCount]float64 {
	raw := [FeatureCount]float64{s.ActivePower, s.ReactivePower, s.ElapsedSeconds}
	var z [FeatureCount]float64
	for i := range raw {
		z[i] = (raw[i] - m.mean[i]) / m.scale[i]
	}
	return z
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
