package scenario

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/stats"
)

// pcgStream is the fixed PCG stream; the seed alone selects the sequence.
const pcgStream = 0x5eed

// dropCell addresses one blanked metric.
type dropCell struct {
	supplier int
	metric   metric.Metric
}

// RunMissingness blanks candidate metrics with independent seeded trials,
// imputes them and compares the rescored ranking with the baseline. A
// trial runs for every (supplier, candidate) pair in order, so the same
// seed always blanks the same cells.
func (r *Runner) RunMissingness(ctx context.Context, base *Baseline, p Params) (*MissingnessResult, []Failure, error) {
	rng := rand.New(rand.NewPCG(p.Seed, pcgStream))

	sets := make([]metric.Set, len(base.Sets))
	var dropped []dropCell
	for i, set := range base.Sets {
		sets[i] = set.Clone()
		for _, m := range p.Candidates {
			if rng.Float64() >= p.MissingRate {
				continue
			}
			if _, ok := sets[i].Value(m); !ok {
				continue
			}
			sets[i].Drop(m)
			dropped = append(dropped, dropCell{supplier: i, metric: m})
		}
	}

	switch p.Imputation {
	case ImputeKNN:
		imputeKNN(sets, p.Candidates, dropped, p.K)
	default:
		r.imputeIndustryMean(base.Suppliers, sets, dropped)
	}

	batch, err := r.scoreBatch(ctx, base.Suppliers, sets, r.settings)
	if err != nil {
		return nil, nil, err
	}

	out := &MissingnessResult{
		MissingRate: p.MissingRate,
		Imputation:  p.Imputation,
		Dropped:     len(dropped),
		TopK:        p.TopK,
		Rankings:    batch.rankings,
	}
	if p.Imputation == ImputeKNN {
		out.K = p.K
	}
	out.TopKPreservation = stats.TopKPreservation(
		model.RankingIDs(base.Rankings), model.RankingIDs(batch.rankings), p.TopK)

	baseline, updated := pairedFinals(base, batch)
	// lengths always match
	out.MAE, _ = stats.MeanAbsoluteError(baseline, updated)

	return out, batch.failures, nil
}

// imputeIndustryMean fills each blanked cell with the supplier's industry
// average, falling back to the global average.
func (r *Runner) imputeIndustryMean(suppliers []model.Supplier, sets []metric.Set, dropped []dropCell) {
	for _, c := range dropped {
		if avg, ok := r.bands.Average(c.metric, suppliers[c.supplier].Industry); ok {
			sets[c.supplier].Impute(c.metric, avg)
		}
	}
}

// imputeKNN fills each blanked cell from the k nearest suppliers over the
// candidate metrics. Cells KNN cannot fill stay missing and are imputed by
// the scorer from the band average.
func imputeKNN(sets []metric.Set, candidates []metric.Metric, dropped []dropCell, k int) {
	if len(dropped) == 0 {
		return
	}
	col := make(map[metric.Metric]int, len(candidates))
	for j, m := range candidates {
		col[m] = j
	}

	rows := make([][]float64, len(sets))
	for i, set := range sets {
		rows[i] = make([]float64, len(candidates))
		for j, m := range candidates {
			if v, ok := set.Value(m); ok {
				rows[i][j] = v
			} else {
				rows[i][j] = math.NaN()
			}
		}
	}

	filled := stats.KNNImpute(rows, k)
	for _, c := range dropped {
		v := filled[c.supplier][col[c.metric]]
		if !math.IsNaN(v) {
			sets[c.supplier].Impute(c.metric, v)
		}
	}
}

// pairedFinals lines up final scores of suppliers present in both the
// baseline and the rescored batch, in baseline ranking order.
func pairedFinals(base *Baseline, batch *batchResult) ([]float64, []float64) {
	updated := make(map[string]float64, len(batch.rankings))
	for _, r := range batch.rankings {
		updated[r.ID] = r.Score
	}
	var a, b []float64
	for _, r := range base.Rankings {
		if v, ok := updated[r.ID]; ok {
			a = append(a, r.Score)
			b = append(b, v)
		}
	}
	return a, b
}
