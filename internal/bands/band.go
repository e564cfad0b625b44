// Package bands builds the per-industry and global min/max/average ranges
// used to normalize supplier metrics.
package bands

import "math"

// Epsilon is the half-width added to a single-point band.
const Epsilon = 1e-4

// Band is the observed range of one metric within a scope.
type Band struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
	Avg float64 `json:"avg" yaml:"avg"`
}

// Fallback is returned when no observations exist anywhere for a metric.
var Fallback = Band{Min: 0, Max: 1, Avg: 0.5}

// Widen returns b expanded to [min-Epsilon, max+Epsilon] when it covers a
// single point. Inverted bounds are swapped first.
func (b Band) Widen() Band {
	if b.Min > b.Max {
		b.Min, b.Max = b.Max, b.Min
	}
	if b.Max == b.Min {
		b.Min -= Epsilon
		b.Max += Epsilon
	}
	return b
}

// Valid reports whether every bound is finite.
func (b Band) Valid() bool {
	for _, v := range []float64{b.Min, b.Max, b.Avg} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// accumulator collects running min/max/sum for one (scope, metric).
type accumulator struct {
	min, max, sum float64
	n             int
}

func (a *accumulator) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *accumulator) band() Band {
	return Band{Min: a.min, Max: a.max, Avg: a.sum / float64(a.n)}.Widen()
}
