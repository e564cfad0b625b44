package metric

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
)

// Alias chains, most specific name first.
var (
	emissionsAliases      = []string{"emissions_tco2e", "co2_tons", "co2_emissions", "total_emissions", "emissions"}
	waterAliases          = []string{"water_m3", "water_use", "water_usage", "water_consumption"}
	wasteAliases          = []string{"waste_tons", "waste", "waste_generated"}
	antiCorruptionAliases = []string{"anti_corruption", "anti_corruption_policy"}
	geoRiskAliases        = []string{"geo_risk", "geopolitical_risk"}
	climateRiskAliases    = []string{"climate_risk", "climate_exposure"}
	laborRiskAliases      = []string{"labor_risk", "labor_dispute_risk"}
)

// directAliases covers the metrics read straight from the record.
var directAliases = map[Metric][]string{
	RenewablePct:      {"renewable_pct", "renewable_energy_pct", "renewable_share"},
	InjuryRate:        {"injury_rate", "ltifr", "incident_rate"},
	TrainingHours:     {"training_hours", "avg_training_hours"},
	WageRatio:         {"wage_ratio", "living_wage_ratio"},
	DiversityPct:      {"diversity_pct", "gender_diversity_pct", "female_pct"},
	BoardDiversity:    {"board_diversity", "board_diversity_pct"},
	BoardIndependence: {"board_independence", "independent_directors_pct"},
	TransparencyScore: {"transparency_score", "disclosure_score"},
}

// Risks holds the optional risk indicators. Values are as found on the
// record; scaling to [0,1] happens in the risk calculator.
type Risks struct {
	Geopolitical *float64 `json:"geopolitical,omitempty"`
	Climate      *float64 `json:"climate,omitempty"`
	Labor        *float64 `json:"labor,omitempty"`
}

// Set is the canonical metric vector derived from one record. A metric
// missing from Values is absent. Imputed marks values that were filled in
// by an imputation step rather than observed.
type Set struct {
	Values         map[Metric]float64 `json:"values"`
	Imputed        map[Metric]bool    `json:"imputed,omitempty"`
	AntiCorruption *bool              `json:"anti_corruption,omitempty"`
	Risks          Risks              `json:"risks"`
}

// Value returns the value of m and whether it is present.
func (s Set) Value(m Metric) (float64, bool) {
	v, ok := s.Values[m]
	return v, ok
}

// Observed counts genuinely observed slots, including the anti-corruption
// flag, out of TotalSlots.
func (s Set) Observed() int {
	n := 0
	for m := range s.Values {
		if !s.Imputed[m] {
			n++
		}
	}
	if s.AntiCorruption != nil {
		n++
	}
	return n
}

// Clone returns a deep copy of s.
func (s Set) Clone() Set {
	out := s
	out.Values = maps.Clone(s.Values)
	if out.Values == nil {
		out.Values = make(map[Metric]float64)
	}
	out.Imputed = maps.Clone(s.Imputed)
	if s.AntiCorruption != nil {
		ac := *s.AntiCorruption
		out.AntiCorruption = &ac
	}
	return out
}

// Drop removes m from the set.
func (s *Set) Drop(m Metric) {
	delete(s.Values, m)
	delete(s.Imputed, m)
}

// Impute stores an imputed value for m.
func (s *Set) Impute(m Metric, v float64) {
	if s.Values == nil {
		s.Values = make(map[Metric]float64)
	}
	if s.Imputed == nil {
		s.Imputed = make(map[Metric]bool)
	}
	s.Values[m] = v
	s.Imputed[m] = true
}

// Derive maps raw record fields onto the canonical metric vector. Intensity
// metrics divide by revenue and are absent when revenue is missing or not
// positive. Invalid values are treated as absent.
func Derive(fields map[string]any, revenue *float64) Set {
	set := Set{Values: make(map[Metric]float64, len(All))}

	rev, hasRev := 0.0, false
	if revenue != nil && isFinite(*revenue) && *revenue > 0 {
		rev, hasRev = *revenue, true
	}
	if hasRev {
		if q, ok := Lookup(fields, emissionsAliases...); ok {
			set.Values[EmissionIntensity] = q / rev
		}
		if q, ok := Lookup(fields, waterAliases...); ok {
			set.Values[WaterIntensity] = q / rev
		}
		if q, ok := Lookup(fields, wasteAliases...); ok {
			set.Values[WasteIntensity] = q / rev
		}
	}

	for m, aliases := range directAliases {
		if v, ok := Lookup(fields, aliases...); ok {
			set.Values[m] = v
		}
	}

	set.AntiCorruption = lookupBool(fields, antiCorruptionAliases...)
	set.Risks = Risks{
		Geopolitical: lookupPtr(fields, geoRiskAliases...),
		Climate:      lookupPtr(fields, climateRiskAliases...),
		Labor:        lookupPtr(fields, laborRiskAliases...),
	}
	return set
}

// Lookup returns the first valid number found under the given aliases.
func Lookup(fields map[string]any, aliases ...string) (float64, bool) {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		if v, ok := ToFloat(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func lookupPtr(fields map[string]any, aliases ...string) *float64 {
	v, ok := Lookup(fields, aliases...)
	if !ok {
		return nil
	}
	return &v
}

func lookupBool(fields map[string]any, aliases ...string) *bool {
	for _, key := range aliases {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		if b, ok := toBool(raw); ok {
			return &b
		}
	}
	return nil
}

// ToFloat converts a record value to a finite float64.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if !isFinite(f) {
		return 0, false
	}
	return f, true
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, false
		}
		return b, true
	}
	f, ok := ToFloat(v)
	if !ok {
		return false, false
	}
	switch f {
	case 1:
		return true, true
	case 0:
		return false, true
	}
	return false, false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
