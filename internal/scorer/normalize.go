package scorer

import (
	"math"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/metric"
)

// Wage ratio bounds are widened to at least this range.
const (
	wageFloor   = 0.6
	wageCeiling = 1.2
)

// NormalizedMetric is one metric after imputation and normalization. Raw is
// nil when the value was not observed and Value holds the imputed band
// average instead.
type NormalizedMetric struct {
	Raw        *float64   `json:"raw"`
	Value      float64    `json:"value"`
	Normalized float64    `json:"normalized"`
	Imputed    bool       `json:"imputed"`
	Band       bands.Band `json:"band"`
}

// Normalize maps x onto [0,1] within b according to the direction of m.
// NaN maps to 0. A single-point band that was not widened maps to 1.
func Normalize(m metric.Metric, x float64, b bands.Band) float64 {
	if math.IsNaN(x) {
		return 0
	}

	dir := metric.DirectionOf(m)
	if dir == metric.WageParity {
		return normalizeWage(x, b)
	}
	if b.Max <= b.Min {
		return 1
	}

	c := clamp(x, b.Min, b.Max)
	var v float64
	if dir == metric.LowerIsBetter {
		v = (b.Max - c) / (b.Max - b.Min)
	} else {
		v = (c - b.Min) / (b.Max - b.Min)
	}
	return clamp(v, 0, 1)
}

// normalizeWage rewards parity: anything at or above 1 saturates, and values
// below 1 scale linearly from the lower bound.
func normalizeWage(x float64, b bands.Band) float64 {
	lower := math.Min(b.Min, wageFloor)
	upper := math.Max(b.Max, wageCeiling)
	if x >= 1 {
		return math.Min(1, (x-1)/(upper-1)+1)
	}
	return clamp((clamp(x, lower, 1)-lower)/(1-lower), 0, 1)
}

// normalizeAll resolves every banded metric: observed values are normalized
// directly, missing ones are imputed with the band average first.
func normalizeAll(set metric.Set, industry string, s Settings, bc *bands.Context) map[metric.Metric]NormalizedMetric {
	out := make(map[metric.Metric]NormalizedMetric, len(metric.All))
	for _, m := range metric.All {
		b := bc.Band(m, industry, s.UseIndustryBands)
		nm := NormalizedMetric{Band: b}
		if v, ok := set.Value(m); ok {
			nm.Value = v
			nm.Imputed = set.Imputed[m]
			if !nm.Imputed {
				raw := v
				nm.Raw = &raw
			}
		} else {
			nm.Value = b.Avg
			nm.Imputed = true
		}
		nm.Normalized = Normalize(m, nm.Value, b)
		out[m] = nm
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
