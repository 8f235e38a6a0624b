// Package main provides CMA-ES tuning of bubble simulation parameters.
package main

import (
	"github.com/pthm-cable/bubblecomplex/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Movement
			{Name: "friendly_speed", Path: "movement.friendly.speed", Min: 10, Max: 150, Default: 60},
			{Name: "friendly_accel", Path: "movement.friendly.acceleration", Min: 0.5, Max: 10, Default: 3},
			{Name: "negative_speed", Path: "movement.negative.speed", Min: 10, Max: 150, Default: 45},
			{Name: "negative_accel", Path: "movement.negative.acceleration", Min: 0.5, Max: 10, Default: 2},
			// Drift field
			{Name: "drift_scale", Path: "drift.scale", Min: 0.0005, Max: 0.02, Default: 0.004},
			{Name: "drift_time_speed", Path: "drift.time_speed", Min: 0, Max: 1, Default: 0.15},
			// Aggregation weights
			{Name: "friendly_child_weight", Path: "population.friendly.child_weight", Min: 0.1, Max: 2, Default: 0.8},
			{Name: "negative_child_weight", Path: "population.negative.child_weight", Min: 0.1, Max: 2, Default: 0.5},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig applies parameter values to a Config struct.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)

	cfg.Movement.Friendly.Speed = c[0]
	cfg.Movement.Friendly.Acceleration = c[1]
	cfg.Movement.Negative.Speed = c[2]
	cfg.Movement.Negative.Acceleration = c[3]

	cfg.Drift.Scale = c[4]
	cfg.Drift.TimeSpeed = c[5]

	cfg.Population.Friendly.ChildWeight = c[6]
	cfg.Population.Negative.ChildWeight = c[7]
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Movement.Friendly.Speed,
		cfg.Movement.Friendly.Acceleration,
		cfg.Movement.Negative.Speed,
		cfg.Movement.Negative.Acceleration,
		cfg.Drift.Scale,
		cfg.Drift.TimeSpeed,
		cfg.Population.Friendly.ChildWeight,
		cfg.Population.Negative.ChildWeight,
	}
}
