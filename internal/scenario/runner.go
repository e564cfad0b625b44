package scenario

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

// DefaultConcurrency bounds parallel rescoring when none is configured.
const DefaultConcurrency = 8

// Runner executes scenarios against a fixed settings and bands pair.
type Runner struct {
	settings    scorer.Settings
	bands       *bands.Context
	concurrency int
}

// NewRunner creates a Runner. A concurrency below 1 uses DefaultConcurrency.
func NewRunner(s scorer.Settings, bc *bands.Context, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Runner{settings: s, bands: bc, concurrency: concurrency}
}

// Settings returns the runner's scoring settings.
func (r *Runner) Settings() scorer.Settings { return r.settings }

// Baseline is the unmodified scoring of a supplier batch. Suppliers and
// Sets hold only the suppliers that scored successfully, in input order.
type Baseline struct {
	Suppliers []model.Supplier
	Sets      []metric.Set
	Scores    map[string]scorer.Result
	Rankings  []model.Ranking
	Failures  []Failure
}

// FinalScores returns the baseline final scores in ranking order.
func (b *Baseline) FinalScores() []float64 {
	out := make([]float64, len(b.Rankings))
	for i, r := range b.Rankings {
		out[i] = r.Score
	}
	return out
}

// industryOf maps supplier IDs to normalized industry keys.
func (b *Baseline) industryOf() map[string]string {
	out := make(map[string]string, len(b.Suppliers))
	for _, s := range b.Suppliers {
		out[s.ID] = bands.IndustryKey(s.Industry)
	}
	return out
}

// Baseline derives and scores every supplier with the runner's settings.
// Per-supplier failures are recorded and the supplier is left out. Only the
// first occurrence of a supplier ID is scored; later ones are failures.
func (r *Runner) Baseline(ctx context.Context, suppliers []model.Supplier) (*Baseline, error) {
	suppliers, dups := dedupe(suppliers)
	sets := make([]metric.Set, len(suppliers))
	for i, s := range suppliers {
		sets[i] = metric.Derive(s.Fields, s.Revenue)
	}

	batch, err := r.scoreBatch(ctx, suppliers, sets, r.settings)
	if err != nil {
		return nil, err
	}

	b := &Baseline{
		Scores:   make(map[string]scorer.Result, len(batch.results)),
		Failures: append(dups, batch.failures...),
	}
	for i, res := range batch.results {
		if res == nil {
			continue
		}
		b.Suppliers = append(b.Suppliers, suppliers[i])
		b.Sets = append(b.Sets, sets[i])
		b.Scores[suppliers[i].ID] = *res
	}
	b.Rankings = batch.rankings
	return b, nil
}

// dedupe keeps the first supplier for each non-empty ID and reports the
// rest as failures. Empty IDs pass through and fail during scoring.
func dedupe(suppliers []model.Supplier) ([]model.Supplier, []Failure) {
	seen := make(map[string]bool, len(suppliers))
	out := make([]model.Supplier, 0, len(suppliers))
	var dups []Failure
	for _, s := range suppliers {
		if s.ID != "" && seen[s.ID] {
			dups = append(dups, Failure{SupplierID: s.ID, Message: "duplicate supplier id"})
			zap.L().Warn("scenario: duplicate supplier id", zap.String("supplier_id", s.ID))
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out, dups
}

type batchResult struct {
	results  []*scorer.Result
	rankings []model.Ranking
	failures []Failure
}

// scoreBatch scores sets[i] for suppliers[i] in parallel and ranks the
// successes. Only context cancellation aborts the batch.
func (r *Runner) scoreBatch(ctx context.Context, suppliers []model.Supplier, sets []metric.Set, s scorer.Settings) (*batchResult, error) {
	results := make([]*scorer.Result, len(suppliers))
	failures := make([]*Failure, len(suppliers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var failed atomic.Int64
	for i := range suppliers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := scoreOne(suppliers[i], sets[i], s, r.bands)
			if err != nil {
				failed.Add(1)
				failures[i] = &Failure{SupplierID: suppliers[i].ID, Message: err.Error()}
				zap.L().Warn("scenario: supplier scoring failed",
					zap.String("supplier_id", suppliers[i].ID),
					zap.Error(err),
				)
				return nil // don't abort batch on individual failure
			}
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "scenario: score batch")
	}

	out := &batchResult{results: results}
	entries := make([]model.Ranking, 0, len(suppliers))
	for i, res := range results {
		if res != nil {
			entries = append(entries, model.Ranking{
				ID:    suppliers[i].ID,
				Name:  suppliers[i].Name,
				Score: res.FinalScore,
			})
		}
		if failures[i] != nil {
			out.failures = append(out.failures, *failures[i])
		}
	}
	out.rankings = scorer.Rank(entries)

	zap.L().Debug("scenario: batch scored",
		zap.Int("suppliers", len(suppliers)),
		zap.Int64("failed", failed.Load()),
	)
	return out, nil
}

func scoreOne(sup model.Supplier, set metric.Set, s scorer.Settings, bc *bands.Context) (res scorer.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("panic while scoring: %v", p)
		}
	}()

	if sup.ID == "" {
		return res, eris.New("supplier id is empty")
	}
	b := scorer.ScoreMetrics(set, sup.Industry, s, bc)
	b.SupplierID = sup.ID
	res = b.Result()
	if math.IsNaN(res.FinalScore) || math.IsInf(res.FinalScore, 0) {
		return res, eris.Errorf("non-finite final score for supplier %s", sup.ID)
	}
	return res, nil
}

// Run scores the baseline and applies the scenario named by typ.
func (r *Runner) Run(ctx context.Context, typ model.ScenarioType, suppliers []model.Supplier, params Params) (*Result, error) {
	if !typ.Valid() {
		return nil, eris.Errorf("scenario: unknown type %q", typ)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params = params.withDefaults()

	base, err := r.Baseline(ctx, suppliers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Type:       typ,
		Seed:       params.Seed,
		ConfigHash: scorer.ConfigHash(r.settings, typ, params),
		Baseline:   base.Rankings,
		Failures:   append([]Failure{}, base.Failures...),
	}

	var extra []Failure
	switch typ {
	case model.ScenarioUtility:
		res.Utility = RunUtility(base, params)
	case model.ScenarioSensitivity:
		res.Sensitivity = RunSensitivity(base, params)
	case model.ScenarioMissingness:
		res.Missingness, extra, err = r.RunMissingness(ctx, base, params)
	case model.ScenarioAblation:
		res.Ablation, extra, err = r.RunAblation(ctx, base)
	}
	if err != nil {
		return nil, err
	}
	res.Failures = append(res.Failures, extra...)

	zap.L().Info("scenario: run complete",
		zap.String("type", string(typ)),
		zap.Int("suppliers", len(suppliers)),
		zap.Int("scored", len(base.Rankings)),
		zap.Int("failures", len(res.Failures)),
	)
	return res, nil
}
