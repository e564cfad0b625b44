package scorer

import (
	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
)

// Result is the scoring outcome for one supplier. RiskPenalty marshals as
// null when the penalty feature is disabled.
type Result struct {
	SupplierID        string    `json:"supplier_id,omitempty"`
	Environmental     float64   `json:"environmental_score"`
	Social            float64   `json:"social_score"`
	Governance        float64   `json:"governance_score"`
	Composite         float64   `json:"composite_score"`
	CompletenessRatio float64   `json:"completeness_ratio"`
	RiskFactor        float64   `json:"risk_factor"`
	RiskPenalty       *float64  `json:"risk_penalty"`
	RiskLevel         RiskLevel `json:"risk_level"`
	FinalScore        float64   `json:"final_score"`
	DisclosureCapped  bool      `json:"disclosure_capped,omitempty"`
}

// Weights is the weight set that produced a breakdown.
type Weights struct {
	Environmental EnvironmentalWeights `json:"environmental"`
	Social        SocialWeights        `json:"social"`
	Governance    GovernanceWeights    `json:"governance"`
	Pillars       PillarWeights        `json:"pillars"`
	Risk          RiskWeights          `json:"risk"`
}

// Breakdown is the audit view of one scoring call.
type Breakdown struct {
	SupplierID        string                             `json:"supplier_id,omitempty"`
	Industry          string                             `json:"industry,omitempty"`
	NormalizedMetrics map[metric.Metric]NormalizedMetric `json:"normalized_metrics"`
	AntiCorruption    *bool                              `json:"anti_corruption"`
	PillarScores      Pillars                            `json:"pillar_scores"`
	Weights           Weights                            `json:"weights"`
	Composite         float64                            `json:"composite_score"`
	Risk              RiskAssessment                     `json:"risk"`
	CompletenessRatio float64                            `json:"completeness_ratio"`
	FinalScore        float64                            `json:"final_score"`
	FinalScoreMode    FinalMode                          `json:"final_score_mode"`
	DisclosureCapped  bool                               `json:"disclosure_capped"`
	UseIndustryBands  bool                               `json:"use_industry_bands"`
}

// Result flattens the breakdown.
func (b Breakdown) Result() Result {
	return Result{
		SupplierID:        b.SupplierID,
		Environmental:     b.PillarScores.Environmental,
		Social:            b.PillarScores.Social,
		Governance:        b.PillarScores.Governance,
		Composite:         b.Composite,
		CompletenessRatio: b.CompletenessRatio,
		RiskFactor:        b.Risk.Factor,
		RiskPenalty:       b.Risk.Penalty,
		RiskLevel:         b.Risk.Level,
		FinalScore:        b.FinalScore,
		DisclosureCapped:  b.DisclosureCapped,
	}
}

// ScoreMetrics runs the pipeline on an already derived metric set. set is
// read only.
func ScoreMetrics(set metric.Set, industry string, s Settings, bc *bands.Context) Breakdown {
	normalized := normalizeAll(set, industry, s, bc)
	flat := make(map[metric.Metric]float64, len(normalized))
	for m, nm := range normalized {
		flat[m] = nm.Normalized
	}

	pillars := AggregatePillars(flat, set.AntiCorruption, s)
	composite := Composite(pillars, s.Pillars)
	completeness := CompletenessRatio(set.Observed())
	risk := AssessRisk(set.Risks, s)

	final := CombineFinal(composite, risk.Penalty, risk.Factor, s.FinalScoreMode)
	final, capped := ApplyDisclosureCap(final, completeness, s)

	return Breakdown{
		Industry:          industry,
		NormalizedMetrics: normalized,
		AntiCorruption:    set.AntiCorruption,
		PillarScores:      pillars,
		Weights: Weights{
			Environmental: s.Environmental,
			Social:        s.Social,
			Governance:    s.Governance,
			Pillars:       s.Pillars,
			Risk:          s.RiskWeights,
		},
		Composite:         composite,
		Risk:              risk,
		CompletenessRatio: completeness,
		FinalScore:        final,
		FinalScoreMode:    s.FinalScoreMode,
		DisclosureCapped:  capped,
		UseIndustryBands:  s.UseIndustryBands,
	}
}

// ScoreSupplierWithBreakdown derives and scores one supplier, returning the
// full audit view.
func ScoreSupplierWithBreakdown(sup model.Supplier, s Settings, bc *bands.Context) Breakdown {
	b := ScoreMetrics(metric.Derive(sup.Fields, sup.Revenue), sup.Industry, s, bc)
	b.SupplierID = sup.ID
	return b
}

// ScoreSupplier derives and scores one supplier.
func ScoreSupplier(sup model.Supplier, s Settings, bc *bands.Context) Result {
	return ScoreSupplierWithBreakdown(sup, s, bc).Result()
}
