package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/cache"
	"github.com/sells-group/esg-scorer/internal/dataset"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/store"
)

// scoringEnv holds the bands, runner and optional store shared by the
// score, scenario and serve commands.
type scoringEnv struct {
	Bands  *bands.Context
	Runner *scenario.Runner
	Store  store.Store // may be nil
	Cache  cache.Cache
}

// Close releases resources held by the environment.
func (e *scoringEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates config for mode and builds the bands context. When no
// bands source is configured the rows in fallback serve as the reference
// dataset. A store is opened only when withStore is set.
func initEnv(ctx context.Context, mode string, fallback []model.Supplier, withStore bool) (*scoringEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	bc, err := initBands(ctx, fallback)
	if err != nil {
		return nil, err
	}

	env := &scoringEnv{
		Bands:  bc,
		Runner: scenario.NewRunner(cfg.Scoring, bc, cfg.Batch.Concurrency),
		Cache:  cache.Nop{},
	}

	if withStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}
	return env, nil
}

// initBands loads the configured bands document or reference dataset.
func initBands(ctx context.Context, fallback []model.Supplier) (*bands.Context, error) {
	var doc *bands.Document
	if cfg.Bands.DocumentPath != "" {
		d, err := dataset.LoadBandsDocument(cfg.Bands.DocumentPath)
		if err != nil {
			return nil, err
		}
		doc = d
	}

	rows := fallback
	if doc == nil && cfg.Bands.ReferencePath != "" {
		ref, err := dataset.LoadReference(ctx, cfg.Bands.ReferencePath)
		if err != nil {
			return nil, eris.Wrap(err, "load reference dataset")
		}
		rows = ref
	} else if doc == nil {
		zap.L().Warn("no bands source configured, using input suppliers as reference",
			zap.Int("rows", len(fallback)),
		)
	}

	return bands.New(rows, doc)
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.SQLitePath
		if dsn == "" {
			dsn = "esg.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCache opens the configured scenario cache. A cache that cannot be
// reached is logged and replaced with a no-op.
func initCache() cache.Cache {
	c, err := cache.New(cfg.Cache.Options())
	if err != nil {
		zap.L().Warn("scenario cache disabled", zap.String("driver", cfg.Cache.Driver), zap.Error(err))
		return cache.Nop{}
	}
	return c
}

// scenarioDefaults converts the configured scenario section into params.
func scenarioDefaults() scenario.Params {
	p := scenario.DefaultParams()
	p.Seed = cfg.Scenario.Seed
	if cfg.Scenario.MissingRate > 0 {
		p.MissingRate = cfg.Scenario.MissingRate
	}
	if cfg.Scenario.Imputation != "" {
		p.Imputation = cfg.Scenario.Imputation
	}
	if cfg.Scenario.K > 0 {
		p.K = cfg.Scenario.K
	}
	if cfg.Scenario.TopK > 0 {
		p.TopK = cfg.Scenario.TopK
	}
	minScore := cfg.Scenario.MinScore
	p.MinScore = &minScore
	return p
}
