package scorer

import (
	"math"

	"github.com/sells-group/esg-scorer/internal/metric"
)

// RiskLevel buckets the risk factor.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskAssessment is the full risk outcome for one supplier. Penalty is nil
// when the penalty feature is disabled and 0 when it is enabled but no
// indicator was available. Penalty is clamped to [0,100]; RawPenalty is not.
type RiskAssessment struct {
	Enabled    bool      `json:"enabled"`
	Factor     float64   `json:"factor"`
	Penalty    *float64  `json:"penalty"`
	RawPenalty *float64  `json:"raw_penalty,omitempty"`
	Level      RiskLevel `json:"level"`
}

type weightedIndicator struct {
	value  float64
	weight float64
}

// indicators returns the present risk indicators scaled to [0,1]. The scale
// is decided once per record: if any present value is above 1 the whole
// record is read as percentages.
func indicators(r metric.Risks, w RiskWeights) []weightedIndicator {
	var out []weightedIndicator
	percent := false
	for _, p := range []struct {
		v *float64
		w float64
	}{
		{r.Geopolitical, w.Geopolitical},
		{r.Climate, w.Climate},
		{r.Labor, w.Labor},
	} {
		if p.v == nil || math.IsNaN(*p.v) || math.IsInf(*p.v, 0) {
			continue
		}
		if *p.v > 1 {
			percent = true
		}
		out = append(out, weightedIndicator{value: *p.v, weight: p.w})
	}
	for i := range out {
		if percent {
			out[i].value /= 100
		}
		out[i].value = clamp(out[i].value, 0, 1)
	}
	return out
}

// RiskPenalty returns the raw penalty points: nil when disabled, exactly 0
// when no indicator is present, otherwise lambda * max(0, risk - threshold)
// * 100 with weights renormalized over the present indicators. The result
// is not clamped.
//
// Indicators may be fractions or percentages. A record whose present
// indicators are all at or below 1 is read as fractions, so a record on the
// 0-100 scale with every value below 1 is misread.
func RiskPenalty(r metric.Risks, s Settings) *float64 {
	if !s.RiskPenaltyEnabled {
		return nil
	}
	present := indicators(r, s.RiskWeights)
	penalty := 0.0
	if len(present) == 0 {
		return &penalty
	}

	var wsum float64
	for _, ind := range present {
		wsum += ind.weight
	}
	var raw float64
	for _, ind := range present {
		if wsum > 0 {
			raw += ind.weight / wsum * ind.value
		} else {
			// all present weights are zero: plain mean
			raw += ind.value / float64(len(present))
		}
	}

	excess := math.Max(0, raw-s.RiskThreshold)
	penalty = s.RiskLambda * excess * 100
	return &penalty
}

// AssessRisk computes the penalty, risk factor and level for one supplier.
func AssessRisk(r metric.Risks, s Settings) RiskAssessment {
	ra := RiskAssessment{Enabled: s.RiskPenaltyEnabled}

	if raw := RiskPenalty(r, s); raw != nil {
		reported := clamp(*raw, 0, 100)
		ra.RawPenalty = raw
		ra.Penalty = &reported
		ra.Factor = math.Min(1, reported/100)
	} else {
		present := indicators(r, s.RiskWeights)
		if len(present) == 0 {
			ra.Factor = s.DefaultRiskFactor
		} else {
			var sum float64
			for _, ind := range present {
				sum += ind.value
			}
			ra.Factor = sum / float64(len(present))
		}
	}

	ra.Factor = clamp(ra.Factor, 0, 1)
	ra.Level = RiskLevelFor(ra.Factor)
	return ra
}

// RiskLevelFor buckets a risk factor.
func RiskLevelFor(factor float64) RiskLevel {
	switch {
	case factor < 0.2:
		return RiskLow
	case factor < 0.4:
		return RiskMedium
	case factor < 0.6:
		return RiskHigh
	default:
		return RiskCritical
	}
}
