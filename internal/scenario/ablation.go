package scenario

import (
	"context"

	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/stats"
)

// RunAblation flips the industry-bands setting, rescores and reports the
// rank correlation and industry disparity against the baseline.
func (r *Runner) RunAblation(ctx context.Context, base *Baseline) (*AblationResult, []Failure, error) {
	s := r.settings
	s.UseIndustryBands = !s.UseIndustryBands

	batch, err := r.scoreBatch(ctx, base.Suppliers, base.Sets, s)
	if err != nil {
		return nil, nil, err
	}

	industry := base.industryOf()
	return &AblationResult{
		UseIndustryBands:  s.UseIndustryBands,
		KendallTau:        stats.KendallTau(model.RankingIDs(base.Rankings), model.RankingIDs(batch.rankings)),
		Disparity:         stats.RankDisparity(batch.rankings, industry),
		BaselineDisparity: stats.RankDisparity(base.Rankings, industry),
		Rankings:          batch.rankings,
	}, batch.failures, nil
}
