// Package model implements in-process inference for the two trained
// classifiers: an L1-regularized logistic regression and a gradient-boosted
// tree ensemble. Both are exported by the training pipeline as plain JSON
// coefficient/tree dumps; no model runtime is needed to score them.
package model

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/feature"
)

// Logistic is a trained logistic regression over the feature vector.
type Logistic struct {
	// Coefficients are keyed by feature name and must cover a subset of
	// the trained feature list.
	Coefficients map[string]float64 `json:"coefficients"`
	Intercept    float64            `json:"intercept"`
}

// PredictProba returns P(fraud) for the vector.
func (m *Logistic) PredictProba(vec *feature.Vector) (float64, error) {
	if len(m.Coefficients) == 0 {
		return 0, fmt.Errorf("model: logistic model has no coefficients")
	}

	z := m.Intercept
	names := vec.Names()
	values := vec.Values()
	matched := 0
	for i, name := range names {
		if coef, ok := m.Coefficients[name]; ok {
			z += coef * values[i]
			matched++
		}
	}
	if matched == 0 {
		return 0, fmt.Errorf("model: no logistic coefficient matches the %d-feature vector", vec.Len())
	}

	return sigmoid(z), nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
