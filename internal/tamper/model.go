package tamper

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Model is a statistical tamper classifier with an anomaly detector.
// Either method returns nil when it has no answer for the features.
type Model interface {
	ClassifyTamperProbability(features map[string]float64) *float64
	ScoreAnomaly(features map[string]float64) *float64
}

// LinearModel is a logistic classifier over named features plus a
// per-feature z-score anomaly detector. It is loaded from JSON:
//
//	{
//	  "features": ["marks_percent", ...],
//	  "weights":  [0.01, ...],
//	  "bias":     -2.5,
//	  "anomaly":  {"mean": [...], "stddev": [...]}
//	}
type LinearModel struct {
	Features []string       `json:"features"`
	Weights  []float64      `json:"weights"`
	Bias     float64        `json:"bias"`
	Anomaly  *AnomalyParams `json:"anomaly,omitempty"`
}

// AnomalyParams are the genuine-population statistics per feature
type AnomalyParams struct {
	Mean   []float64 `json:"mean"`
	StdDev []float64 `json:"stddev"`
}

// LoadLinearModel reads and validates a model file
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks that every parameter vector lines up with the feature list
func (m *LinearModel) Validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("no features")
	}
	if len(m.Weights) != len(m.Features) {
		return fmt.Errorf("%d weights for %d features", len(m.Weights), len(m.Features))
	}
	if m.Anomaly != nil {
		if len(m.Anomaly.Mean) != len(m.Features) || len(m.Anomaly.StdDev) != len(m.Features) {
			return fmt.Errorf("anomaly parameters do not match %d features", len(m.Features))
		}
	}
	return nil
}

// ClassifyTamperProbability returns sigmoid(bias + w·x). Missing features count as 0.
func (m *LinearModel) ClassifyTamperProbability(features map[string]float64) *float64 {
	z := m.Bias
	for i, name := range m.Features {
		z += m.Weights[i] * features[name]
	}
	p := 1 / (1 + math.Exp(-z))
	return &p
}

// ScoreAnomaly returns the largest absolute z-score across features, or
// nil when the model carries no anomaly parameters
func (m *LinearModel) ScoreAnomaly(features map[string]float64) *float64 {
	if m.Anomaly == nil {
		return nil
	}

	worst := 0.0
	for i, name := range m.Features {
		sd := m.Anomaly.StdDev[i]
		if sd <= 0 {
			continue
		}
		x, ok := features[name]
		if !ok {
			continue
		}
		if z := math.Abs(x-m.Anomaly.Mean[i]) / sd; z > worst {
			worst = z
		}
	}
	return &worst
}
