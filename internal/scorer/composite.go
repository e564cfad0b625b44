package scorer

import "github.com/sells-group/esg-scorer/internal/metric"

// Composite is the pillar-weighted sum of p.
func Composite(p Pillars, w PillarWeights) float64 {
	return p.Environmental*w.Environmental + p.Social*w.Social + p.Governance*w.Governance
}

// CompletenessRatio is the share of metric slots that were genuinely
// observed. It is reported only and never feeds the composite.
func CompletenessRatio(observed int) float64 {
	return clamp(float64(observed)/float64(metric.TotalSlots), 0, 1)
}
