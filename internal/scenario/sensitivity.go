package scenario

import (
	"math"

	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scorer"
	"github.com/sells-group/esg-scorer/internal/stats"
)

// Perturb scales a score by (1 + p) and clamps it to [0,100].
func Perturb(score, p float64) float64 {
	return math.Max(0, math.Min(100, score*(1+p)))
}

// RunSensitivity perturbs every baseline final score once per requested
// perturbation and compares the re-ranked result with the baseline.
func RunSensitivity(base *Baseline, p Params) []SensitivityResult {
	baseIDs := model.RankingIDs(base.Rankings)
	out := make([]SensitivityResult, 0, len(p.Perturbations))

	for _, pert := range p.Perturbations {
		entries := make([]model.Ranking, len(base.Rankings))
		for i, r := range base.Rankings {
			entries[i] = model.Ranking{ID: r.ID, Name: r.Name, Score: Perturb(r.Score, pert)}
		}
		ranked := scorer.Rank(entries)
		shifts := stats.RankShifts(base.Rankings, ranked)
		out = append(out, SensitivityResult{
			Perturbation:  pert,
			KendallTau:    stats.KendallTau(baseIDs, model.RankingIDs(ranked)),
			MeanRankShift: shifts.Mean,
			MaxRankShift:  shifts.Max,
			Rankings:      ranked,
		})
	}
	return out
}
