package scorer

import "github.com/sells-group/esg-scorer/internal/metric"

// Pillars holds the three pillar scores on a 0-100 scale.
type Pillars struct {
	Environmental float64 `json:"environmental"`
	Social        float64 `json:"social"`
	Governance    float64 `json:"governance"`
}

// AggregatePillars weight-sums normalized metrics into pillar scores. A
// metric missing from norm contributes 0; weights are not renormalized.
// A nil antiCorruption flag also contributes 0.
func AggregatePillars(norm map[metric.Metric]float64, antiCorruption *bool, s Settings) Pillars {
	e := s.Environmental
	env := e.EmissionIntensity*norm[metric.EmissionIntensity] +
		e.RenewablePct*norm[metric.RenewablePct] +
		e.WaterIntensity*norm[metric.WaterIntensity] +
		e.WasteIntensity*norm[metric.WasteIntensity]

	so := s.Social
	soc := so.InjuryRate*norm[metric.InjuryRate] +
		so.TrainingHours*norm[metric.TrainingHours] +
		so.WageRatio*norm[metric.WageRatio] +
		so.DiversityPct*norm[metric.DiversityPct]

	g := s.Governance
	ac := 0.0
	if antiCorruption != nil && *antiCorruption {
		ac = 1
	}
	gov := g.BoardDiversity*norm[metric.BoardDiversity] +
		g.BoardIndependence*norm[metric.BoardIndependence] +
		g.AntiCorruption*ac +
		g.TransparencyScore*norm[metric.TransparencyScore]

	return Pillars{
		Environmental: env * 100,
		Social:        soc * 100,
		Governance:    gov * 100,
	}
}
