// Package scenario reruns the scoring pipeline under modified inputs or
// settings and summarizes how rankings move.
package scenario

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/stats"
)

// Imputation strategies for the missingness scenario.
const (
	ImputeIndustryMean = "industry_mean"
	ImputeKNN          = "knn"
)

// DefaultCandidates are the metrics the missingness scenario may blank out.
var DefaultCandidates = []metric.Metric{
	metric.RenewablePct,
	metric.InjuryRate,
	metric.TrainingHours,
	metric.WageRatio,
	metric.DiversityPct,
	metric.BoardDiversity,
	metric.BoardIndependence,
	metric.TransparencyScore,
}

// Params configures a scenario run. Only the fields relevant to the chosen
// scenario type are read.
type Params struct {
	Seed uint64 `json:"seed" yaml:"seed"`

	// S1: absolute floor, or a percentage of the best baseline score.
	MinScore      *float64 `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	MarginPercent *float64 `json:"margin_percent,omitempty" yaml:"margin_percent,omitempty"`

	// S2
	Perturbations []float64 `json:"perturbations,omitempty" yaml:"perturbations,omitempty"`

	// S3
	MissingRate float64         `json:"missing_rate" yaml:"missing_rate"`
	Imputation  string          `json:"imputation,omitempty" yaml:"imputation,omitempty"`
	K           int             `json:"k,omitempty" yaml:"k,omitempty"`
	Candidates  []metric.Metric `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	TopK        int             `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// DefaultParams returns the standard parameters for every scenario.
func DefaultParams() Params {
	minScore := 50.0
	return Params{
		Seed:          42,
		MinScore:      &minScore,
		Perturbations: []float64{0.10, -0.10, 0.20, -0.20},
		MissingRate:   0.2,
		Imputation:    ImputeIndustryMean,
		K:             5,
		Candidates:    DefaultCandidates,
		TopK:          3,
	}
}

// withDefaults fills zero values from DefaultParams. A missing rate given
// as a percentage is scaled to a fraction.
func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.MinScore == nil && p.MarginPercent == nil {
		p.MinScore = d.MinScore
	}
	if len(p.Perturbations) == 0 {
		p.Perturbations = d.Perturbations
	}
	if p.MissingRate > 1 {
		p.MissingRate /= 100
	}
	if p.Imputation == "" {
		p.Imputation = d.Imputation
	}
	if p.K <= 0 {
		p.K = d.K
	}
	if len(p.Candidates) == 0 {
		p.Candidates = d.Candidates
	}
	if p.TopK <= 0 {
		p.TopK = d.TopK
	}
	return p
}

// Validate reports every invalid field at once.
func (p Params) Validate() error {
	var errs []string
	if p.MinScore != nil && (*p.MinScore < 0 || *p.MinScore > 100) {
		errs = append(errs, "min_score must be between 0 and 100")
	}
	if p.MarginPercent != nil && (*p.MarginPercent < 0 || *p.MarginPercent > 100) {
		errs = append(errs, "margin_percent must be between 0 and 100")
	}
	for _, pert := range p.Perturbations {
		if pert <= -1 {
			errs = append(errs, fmt.Sprintf("perturbation %g must be > -1", pert))
		}
	}
	if p.MissingRate < 0 || p.MissingRate > 100 {
		errs = append(errs, "missing_rate must be between 0 and 1 (or 0 and 100 percent)")
	}
	switch p.Imputation {
	case "", ImputeIndustryMean, ImputeKNN:
	default:
		errs = append(errs, fmt.Sprintf("imputation must be %q or %q", ImputeIndustryMean, ImputeKNN))
	}
	if p.K < 0 {
		errs = append(errs, "k must be >= 0")
	}
	for _, m := range p.Candidates {
		if _, ok := metric.Parse(string(m)); !ok {
			errs = append(errs, fmt.Sprintf("unknown candidate metric %q", m))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("scenario: invalid params: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Failure records one supplier that could not be scored.
type Failure struct {
	SupplierID string `json:"supplier_id"`
	Message    string `json:"message"`
}

// Result is the outcome of one scenario run. Exactly one of the variant
// fields is set, matching Type.
type Result struct {
	Type        model.ScenarioType  `json:"type"`
	Seed        uint64              `json:"seed"`
	ConfigHash  string              `json:"config_hash"`
	Baseline    []model.Ranking     `json:"baseline"`
	Utility     *UtilityResult      `json:"utility,omitempty"`
	Sensitivity []SensitivityResult `json:"sensitivity,omitempty"`
	Missingness *MissingnessResult  `json:"missingness,omitempty"`
	Ablation    *AblationResult     `json:"ablation,omitempty"`
	Failures    []Failure           `json:"failures"`
}

// UtilityResult is the S1 variant.
type UtilityResult struct {
	Threshold         float64         `json:"threshold"`
	BaselineTotal     float64         `json:"baseline_total"`
	FilteredTotal     float64         `json:"filtered_total"`
	ObjectiveDeltaPct float64         `json:"objective_delta_pct"`
	Retained          int             `json:"retained"`
	Total             int             `json:"total"`
	Rankings          []model.Ranking `json:"rankings"`
}

// SensitivityResult is one S2 variant.
type SensitivityResult struct {
	Perturbation  float64         `json:"perturbation"`
	KendallTau    float64         `json:"kendall_tau"`
	MeanRankShift float64         `json:"mean_rank_shift"`
	MaxRankShift  int             `json:"max_rank_shift"`
	Rankings      []model.Ranking `json:"rankings"`
}

// MissingnessResult is the S3 variant.
type MissingnessResult struct {
	MissingRate      float64         `json:"missing_rate"`
	Imputation       string          `json:"imputation"`
	K                int             `json:"k,omitempty"`
	Dropped          int             `json:"dropped"`
	TopK             int             `json:"top_k"`
	TopKPreservation float64         `json:"top_k_preservation"`
	MAE              float64         `json:"mae"`
	Rankings         []model.Ranking `json:"rankings"`
}

// AblationResult is the S4 variant.
type AblationResult struct {
	UseIndustryBands  bool                  `json:"use_industry_bands"`
	KendallTau        float64               `json:"kendall_tau"`
	Disparity         stats.DisparityResult `json:"disparity"`
	BaselineDisparity stats.DisparityResult `json:"baseline_disparity"`
	Rankings          []model.Ranking       `json:"rankings"`
}
