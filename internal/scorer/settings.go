// Package scorer turns a supplier record into E/S/G pillar scores, a
// composite, a risk penalty and a final score.
package scorer

import (
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FinalMode selects how the risk adjustment is applied to the composite.
type FinalMode string

const (
	// FinalAdditive subtracts the risk penalty from the composite.
	FinalAdditive FinalMode = "additive"
	// FinalMultiplicative scales the composite by (1 - risk factor).
	FinalMultiplicative FinalMode = "multiplicative"
)

// EnvironmentalWeights weights the environmental metrics.
type EnvironmentalWeights struct {
	EmissionIntensity float64 `yaml:"emission_intensity" mapstructure:"emission_intensity" json:"emission_intensity"`
	RenewablePct      float64 `yaml:"renewable_pct" mapstructure:"renewable_pct" json:"renewable_pct"`
	WaterIntensity    float64 `yaml:"water_intensity" mapstructure:"water_intensity" json:"water_intensity"`
	WasteIntensity    float64 `yaml:"waste_intensity" mapstructure:"waste_intensity" json:"waste_intensity"`
}

// SocialWeights weights the social metrics.
type SocialWeights struct {
	InjuryRate    float64 `yaml:"injury_rate" mapstructure:"injury_rate" json:"injury_rate"`
	TrainingHours float64 `yaml:"training_hours" mapstructure:"training_hours" json:"training_hours"`
	WageRatio     float64 `yaml:"wage_ratio" mapstructure:"wage_ratio" json:"wage_ratio"`
	DiversityPct  float64 `yaml:"diversity_pct" mapstructure:"diversity_pct" json:"diversity_pct"`
}

// GovernanceWeights weights the governance metrics.
type GovernanceWeights struct {
	BoardDiversity    float64 `yaml:"board_diversity" mapstructure:"board_diversity" json:"board_diversity"`
	BoardIndependence float64 `yaml:"board_independence" mapstructure:"board_independence" json:"board_independence"`
	AntiCorruption    float64 `yaml:"anti_corruption" mapstructure:"anti_corruption" json:"anti_corruption"`
	TransparencyScore float64 `yaml:"transparency_score" mapstructure:"transparency_score" json:"transparency_score"`
}

// PillarWeights weights the three pillars in the composite.
type PillarWeights struct {
	Environmental float64 `yaml:"environmental" mapstructure:"environmental" json:"environmental"`
	Social        float64 `yaml:"social" mapstructure:"social" json:"social"`
	Governance    float64 `yaml:"governance" mapstructure:"governance" json:"governance"`
}

// RiskWeights weights the three risk indicators.
type RiskWeights struct {
	Geopolitical float64 `yaml:"geopolitical" mapstructure:"geopolitical" json:"geopolitical"`
	Climate      float64 `yaml:"climate" mapstructure:"climate" json:"climate"`
	Labor        float64 `yaml:"labor" mapstructure:"labor" json:"labor"`
}

// Settings is the complete scoring policy.
type Settings struct {
	Environmental EnvironmentalWeights `yaml:"environmental" mapstructure:"environmental" json:"environmental"`
	Social        SocialWeights        `yaml:"social" mapstructure:"social" json:"social"`
	Governance    GovernanceWeights    `yaml:"governance" mapstructure:"governance" json:"governance"`
	Pillars       PillarWeights        `yaml:"pillars" mapstructure:"pillars" json:"pillars"`

	UseIndustryBands bool `yaml:"use_industry_bands" mapstructure:"use_industry_bands" json:"use_industry_bands"`

	RiskWeights        RiskWeights `yaml:"risk_weights" mapstructure:"risk_weights" json:"risk_weights"`
	RiskThreshold      float64     `yaml:"risk_threshold" mapstructure:"risk_threshold" json:"risk_threshold"`
	RiskLambda         float64     `yaml:"risk_lambda" mapstructure:"risk_lambda" json:"risk_lambda"`
	RiskPenaltyEnabled bool        `yaml:"risk_penalty_enabled" mapstructure:"risk_penalty_enabled" json:"risk_penalty_enabled"`
	DefaultRiskFactor  float64     `yaml:"default_risk_factor" mapstructure:"default_risk_factor" json:"default_risk_factor"`

	FinalScoreMode FinalMode `yaml:"final_score_mode" mapstructure:"final_score_mode" json:"final_score_mode"`

	DisclosureCapEnabled   bool    `yaml:"disclosure_cap_enabled" mapstructure:"disclosure_cap_enabled" json:"disclosure_cap_enabled"`
	DisclosureCapThreshold float64 `yaml:"disclosure_cap_threshold" mapstructure:"disclosure_cap_threshold" json:"disclosure_cap_threshold"`
	DisclosureCapScore     float64 `yaml:"disclosure_cap_score" mapstructure:"disclosure_cap_score" json:"disclosure_cap_score"`
}

// DefaultSettings returns the standard policy. Each weight group sums to 1.
func DefaultSettings() Settings {
	return Settings{
		Environmental: EnvironmentalWeights{
			EmissionIntensity: 0.4,
			RenewablePct:      0.2,
			WaterIntensity:    0.2,
			WasteIntensity:    0.2,
		},
		Social: SocialWeights{
			InjuryRate:    0.3,
			TrainingHours: 0.2,
			WageRatio:     0.2,
			DiversityPct:  0.3,
		},
		Governance: GovernanceWeights{
			BoardDiversity:    0.25,
			BoardIndependence: 0.25,
			AntiCorruption:    0.2,
			TransparencyScore: 0.3,
		},
		Pillars: PillarWeights{Environmental: 0.4, Social: 0.3, Governance: 0.3},

		UseIndustryBands: true,

		RiskWeights:        RiskWeights{Geopolitical: 0.3, Climate: 0.4, Labor: 0.3},
		RiskThreshold:      0.3,
		RiskLambda:         1.0,
		RiskPenaltyEnabled: true,
		DefaultRiskFactor:  0,

		FinalScoreMode: FinalAdditive,

		DisclosureCapEnabled:   false,
		DisclosureCapThreshold: 0.7,
		DisclosureCapScore:     50,
	}
}

// weightGroupTolerance is how far a group's weights may drift from 1.
const weightGroupTolerance = 0.01

func (w EnvironmentalWeights) sum() float64 {
	return w.EmissionIntensity + w.RenewablePct + w.WaterIntensity + w.WasteIntensity
}

func (w SocialWeights) sum() float64 {
	return w.InjuryRate + w.TrainingHours + w.WageRatio + w.DiversityPct
}

func (w GovernanceWeights) sum() float64 {
	return w.BoardDiversity + w.BoardIndependence + w.AntiCorruption + w.TransparencyScore
}

func (w PillarWeights) sum() float64 {
	return w.Environmental + w.Social + w.Governance
}

func (w RiskWeights) sum() float64 {
	return w.Geopolitical + w.Climate + w.Labor
}

// Validate checks that s is internally consistent and reports every problem
// at once.
func (s Settings) Validate() error {
	var errs []string

	weights := map[string]float64{
		"environmental.emission_intensity": s.Environmental.EmissionIntensity,
		"environmental.renewable_pct":      s.Environmental.RenewablePct,
		"environmental.water_intensity":    s.Environmental.WaterIntensity,
		"environmental.waste_intensity":    s.Environmental.WasteIntensity,
		"social.injury_rate":               s.Social.InjuryRate,
		"social.training_hours":            s.Social.TrainingHours,
		"social.wage_ratio":                s.Social.WageRatio,
		"social.diversity_pct":             s.Social.DiversityPct,
		"governance.board_diversity":       s.Governance.BoardDiversity,
		"governance.board_independence":    s.Governance.BoardIndependence,
		"governance.anti_corruption":       s.Governance.AntiCorruption,
		"governance.transparency_score":    s.Governance.TransparencyScore,
		"pillars.environmental":            s.Pillars.Environmental,
		"pillars.social":                   s.Pillars.Social,
		"pillars.governance":               s.Pillars.Governance,
		"risk_weights.geopolitical":        s.RiskWeights.Geopolitical,
		"risk_weights.climate":             s.RiskWeights.Climate,
		"risk_weights.labor":               s.RiskWeights.Labor,
	}
	for _, name := range slices.Sorted(maps.Keys(weights)) {
		w := weights[name]
		if math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("%s must be finite", name))
		} else if w < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}

	groups := []struct {
		name string
		sum  float64
	}{
		{"environmental", s.Environmental.sum()},
		{"social", s.Social.sum()},
		{"governance", s.Governance.sum()},
		{"pillars", s.Pillars.sum()},
		{"risk_weights", s.RiskWeights.sum()},
	}
	for _, g := range groups {
		if math.Abs(g.sum-1) > weightGroupTolerance {
			errs = append(errs, fmt.Sprintf("%s weights should sum to 1, got %.3f", g.name, g.sum))
		}
	}

	if !inUnit(s.RiskThreshold) {
		errs = append(errs, "risk_threshold must be between 0 and 1")
	}
	if math.IsNaN(s.RiskLambda) || s.RiskLambda < 0 {
		errs = append(errs, "risk_lambda must be >= 0")
	}
	if !inUnit(s.DefaultRiskFactor) {
		errs = append(errs, "default_risk_factor must be between 0 and 1")
	}

	switch s.FinalScoreMode {
	case FinalAdditive, FinalMultiplicative:
	default:
		errs = append(errs, fmt.Sprintf("final_score_mode must be %q or %q, got %q",
			FinalAdditive, FinalMultiplicative, s.FinalScoreMode))
	}

	if s.DisclosureCapEnabled {
		if !inUnit(s.DisclosureCapThreshold) {
			errs = append(errs, "disclosure_cap_threshold must be between 0 and 1")
		}
		if math.IsNaN(s.DisclosureCapScore) || s.DisclosureCapScore < 0 || s.DisclosureCapScore > 100 {
			errs = append(errs, "disclosure_cap_score must be between 0 and 100")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: settings validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadSettingsFile reads a YAML settings file on top of DefaultSettings and
// validates the result.
func LoadSettingsFile(path string) (Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, eris.Wrapf(err, "scorer: read settings %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, eris.Wrapf(err, "scorer: parse settings %s", path)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
