package domain

import (
	"fmt"
	"maps"
	"sort"
)

// WeightVector holds the per-unit importance used by the aggregation
// engine. Weights are non-negative and are normalized to sum to 1.0
// whenever the raw sum is positive; an all-zero vector is kept as
// supplied so normalization never divides by zero.
//
// A WeightVector is owned by the pipeline coordinator and mutated only
// through Update, between runs, never concurrently with aggregation.
type WeightVector struct {
	weights map[string]float64
}

// NewWeightVector creates a normalized weight vector from the supplied
// per-unit weights. It returns ErrNegativeWeight wrapped with the unit
// name if any weight is negative.
func NewWeightVector(weights map[string]float64) (*WeightVector, error) {
	wv := &WeightVector{weights: make(map[string]float64, len(weights))}
	for unit, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("unit %s: %w", unit, ErrNegativeWeight)
		}
		wv.weights[unit] = w
	}
	wv.normalize()
	return wv, nil
}

// Update merges the supplied overrides into the vector and renormalizes.
// Unknown unit names are added; omitted units keep their current weight.
// If the merged raw sum is zero the vector is left as merged, without
// normalization. Update returns ErrNegativeWeight if any override is
// negative, in which case the vector is unchanged.
func (wv *WeightVector) Update(overrides map[string]float64) error {
	for unit, w := range overrides {
		if w < 0 {
			return fmt.Errorf("unit %s: %w", unit, ErrNegativeWeight)
		}
	}
	for unit, w := range overrides {
		wv.weights[unit] = w
	}
	wv.normalize()
	return nil
}

// normalize scales the weights to sum to 1.0. A zero sum leaves the
// vector untouched.
func (wv *WeightVector) normalize() {
	var total float64
	for _, w := range wv.weights {
		total += w
	}
	if total == 0 {
		return
	}
	for unit, w := range wv.weights {
		wv.weights[unit] = w / total
	}
}

// Weight returns the normalized weight for the named unit, 0 when the
// unit is not present in the vector.
func (wv *WeightVector) Weight(unit string) float64 {
	return wv.weights[unit]
}

// Units returns the unit names in the vector, sorted for deterministic
// iteration.
func (wv *WeightVector) Units() []string {
	units := make([]string, 0, len(wv.weights))
	for unit := range wv.weights {
		units = append(units, unit)
	}
	sort.Strings(units)
	return units
}

// Snapshot returns a copy of the current normalized weights. The copy is
// safe to modify without affecting the vector.
func (wv *WeightVector) Snapshot() map[string]float64 {
	return maps.Clone(wv.weights)
}
