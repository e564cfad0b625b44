package scenario

import (
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

// RunUtility keeps suppliers whose baseline final score meets the
// threshold and reports the change in total score. MarginPercent, when set,
// wins over MinScore and is taken as a percentage of the best score.
func RunUtility(base *Baseline, p Params) *UtilityResult {
	threshold := 0.0
	switch {
	case p.MarginPercent != nil:
		best := 0.0
		if len(base.Rankings) > 0 {
			best = base.Rankings[0].Score
		}
		threshold = best * *p.MarginPercent / 100
	case p.MinScore != nil:
		threshold = *p.MinScore
	}

	out := &UtilityResult{Threshold: threshold, Total: len(base.Rankings)}
	var kept []model.Ranking
	for _, r := range base.Rankings {
		out.BaselineTotal += r.Score
		if r.Score >= threshold {
			kept = append(kept, r)
			out.FilteredTotal += r.Score
		}
	}
	out.Rankings = scorer.Rank(kept)
	out.Retained = len(kept)
	if out.BaselineTotal > 0 {
		out.ObjectiveDeltaPct = (out.FilteredTotal - out.BaselineTotal) / out.BaselineTotal * 100
	}
	return out
}
