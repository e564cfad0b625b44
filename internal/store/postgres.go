package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/db"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/resilience"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects a pool and pings it.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := resilience.Retry(ctx, resilience.ConnectBackoff(), "postgres ping", pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	zap.L().Info("postgres: connected",
		zap.Int32("max_conns", pgxCfg.MaxConns),
		zap.Int32("min_conns", pgxCfg.MinConns),
	)
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool exposes the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	revenue    DOUBLE PRECISION,
	fields     JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS score_snapshots (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	supplier_id TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	final_score DOUBLE PRECISION NOT NULL,
	payload     JSONB NOT NULL,
	scored_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS scenario_runs (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type        TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	seed        BIGINT NOT NULL DEFAULT 0,
	suppliers   INTEGER NOT NULL DEFAULT 0,
	failures    INTEGER NOT NULL DEFAULT 0,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_suppliers_industry ON suppliers(lower(industry));
CREATE INDEX IF NOT EXISTS idx_snapshots_supplier_hash ON score_snapshots(supplier_id, config_hash, scored_at DESC);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_type ON scenario_runs(type);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_hash ON scenario_runs(config_hash);
`

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

var supplierUpsert = db.UpsertConfig{
	Table:        "suppliers",
	Columns:      []string{"id", "name", "industry", "revenue", "fields", "updated_at"},
	ConflictKeys: []string{"id"},
}

func (s *PostgresStore) UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(suppliers))
	for _, sup := range suppliers {
		if sup.ID == "" {
			return 0, eris.New("postgres: supplier id is required")
		}
		fields, err := fieldsJSON(sup.Fields)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: supplier %s", sup.ID)
		}
		rows = append(rows, []any{sup.ID, sup.Name, sup.Industry, sup.Revenue, fields, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, supplierUpsert, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert suppliers")
	}
	return int(n), nil
}

const supplierColumns = `id, name, industry, revenue, fields`

func (s *PostgresStore) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	sup, err := scanPgSupplier(s.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: supplier %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get supplier %s", id)
	}
	return sup, nil
}

func (s *PostgresStore) ListSuppliers(ctx context.Context, filter SupplierFilter) ([]model.Supplier, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE true`
	var args []any
	if filter.Industry != "" {
		args = append(args, filter.Industry)
		query += fmt.Sprintf(` AND lower(trim(industry)) = lower(trim($%d))`, len(args))
	}
	args = append(args, limitOf(filter.Limit), max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list suppliers")
	}
	defer rows.Close()

	var out []model.Supplier
	for rows.Next() {
		sup, err := scanPgSupplier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan supplier")
		}
		out = append(out, *sup)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list suppliers iterate")
}

var snapshotColumns = []string{"id", "supplier_id", "config_hash", "final_score", "payload", "scored_at"}

// SaveSnapshots bulk-loads snapshots with COPY.
func (s *PostgresStore) SaveSnapshots(ctx context.Context, snaps []model.ScoreSnapshot) error {
	rows := make([][]any, len(snaps))
	for i := range snaps {
		prepareSnapshot(&snaps[i])
		snap := snaps[i]
		rows[i] = []any{snap.ID, snap.SupplierID, snap.ConfigHash, snap.FinalScore, snap.Payload, snap.ScoredAt}
	}
	n, err := db.CopyFrom(ctx, s.pool, "score_snapshots", snapshotColumns, rows)
	if err != nil {
		return eris.Wrap(err, "postgres: save snapshots")
	}
	zap.L().Debug("postgres: snapshots saved", zap.Int64("rows", n))
	return nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, supplierID, configHash string) (*model.ScoreSnapshot, error) {
	var snap model.ScoreSnapshot
	err := s.pool.QueryRow(ctx,
		`SELECT id, supplier_id, config_hash, final_score, payload, scored_at
		 FROM score_snapshots WHERE supplier_id = $1 AND config_hash = $2
		 ORDER BY scored_at DESC LIMIT 1`,
		supplierID, configHash,
	).Scan(&snap.ID, &snap.SupplierID, &snap.ConfigHash, &snap.FinalScore, &snap.Payload, &snap.ScoredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot %s", supplierID)
	}
	return &snap, nil
}

func (s *PostgresStore) SaveScenarioRun(ctx context.Context, run *model.ScenarioRun) error {
	prepareRun(run)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scenario_runs (id, type, config_hash, seed, suppliers, failures, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, string(run.Type), run.ConfigHash, int64(run.Seed), run.Suppliers, run.Failures,
		run.Result, run.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert scenario run %s", run.ID)
}

const runColumns = `id, type, config_hash, seed, suppliers, failures, result, created_at`

func (s *PostgresStore) GetScenarioRun(ctx context.Context, id string) (*model.ScenarioRun, error) {
	run, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM scenario_runs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: scenario run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scenario run %s", id)
	}
	return run, nil
}

func (s *PostgresStore) ListScenarioRuns(ctx context.Context, filter RunFilter) ([]model.ScenarioRun, error) {
	query := `SELECT ` + runColumns + ` FROM scenario_runs WHERE true`
	var args []any
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		query += fmt.Sprintf(` AND type = $%d`, len(args))
	}
	if filter.ConfigHash != "" {
		args = append(args, filter.ConfigHash)
		query += fmt.Sprintf(` AND config_hash = $%d`, len(args))
	}
	args = append(args, limitOf(filter.Limit), max(filter.Offset, 0))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scenario runs")
	}
	defer rows.Close()

	var out []model.ScenarioRun
	for rows.Next() {
		run, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan scenario run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scenario runs iterate")
}

func scanPgSupplier(row pgx.Row) (*model.Supplier, error) {
	var sup model.Supplier
	var fields []byte
	if err := row.Scan(&sup.ID, &sup.Name, &sup.Industry, &sup.Revenue, &fields); err != nil {
		return nil, err
	}
	var err error
	sup.Fields, err = decodeFields(fields)
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func scanPgRun(row pgx.Row) (*model.ScenarioRun, error) {
	var run model.ScenarioRun
	var typ string
	var seed int64
	if err := row.Scan(&run.ID, &typ, &run.ConfigHash, &seed, &run.Suppliers, &run.Failures, &run.Result, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Type = model.ScenarioType(typ)
	run.Seed = uint64(seed)
	return &run, nil
}
