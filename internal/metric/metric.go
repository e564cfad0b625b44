// Package metric defines the canonical ESG metric vector and derives it from
// raw supplier records.
package metric

// Metric is one canonical normalized metric key.
type Metric string

const (
	EmissionIntensity Metric = "emission_intensity"
	RenewablePct      Metric = "renewable_pct"
	WaterIntensity    Metric = "water_intensity"
	WasteIntensity    Metric = "waste_intensity"
	InjuryRate        Metric = "injury_rate"
	TrainingHours     Metric = "training_hours"
	WageRatio         Metric = "wage_ratio"
	DiversityPct      Metric = "diversity_pct"
	BoardDiversity    Metric = "board_diversity"
	BoardIndependence Metric = "board_independence"
	TransparencyScore Metric = "transparency_score"
)

// AntiCorruption is the boolean governance flag. It is not banded or
// normalized but occupies a completeness slot.
const AntiCorruption = "anti_corruption"

// All lists the banded metrics in canonical order.
var All = []Metric{
	EmissionIntensity,
	RenewablePct,
	WaterIntensity,
	WasteIntensity,
	InjuryRate,
	TrainingHours,
	WageRatio,
	DiversityPct,
	BoardDiversity,
	BoardIndependence,
	TransparencyScore,
}

// TotalSlots is the completeness denominator: every banded metric plus the
// anti-corruption flag.
const TotalSlots = 12

// Direction describes how a raw value maps onto "better".
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
	WageParity
)

// DirectionOf returns the normalization direction for m.
func DirectionOf(m Metric) Direction {
	switch m {
	case EmissionIntensity, WaterIntensity, WasteIntensity, InjuryRate:
		return LowerIsBetter
	case WageRatio:
		return WageParity
	default:
		return HigherIsBetter
	}
}

// Parse returns the Metric named s, or false if s is not canonical.
func Parse(s string) (Metric, bool) {
	for _, m := range All {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}
