package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/esg-scorer/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store on modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the database at dsn in WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS suppliers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	industry   TEXT NOT NULL DEFAULT '',
	revenue    REAL,
	fields     TEXT NOT NULL DEFAULT '{}',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS score_snapshots (
	id          TEXT PRIMARY KEY,
	supplier_id TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	final_score REAL NOT NULL,
	payload     TEXT NOT NULL,
	scored_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS scenario_runs (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	config_hash TEXT NOT NULL,
	seed        INTEGER NOT NULL DEFAULT 0,
	suppliers   INTEGER NOT NULL DEFAULT 0,
	failures    INTEGER NOT NULL DEFAULT 0,
	result      TEXT NOT NULL,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suppliers_industry ON suppliers(industry);
CREATE INDEX IF NOT EXISTS idx_snapshots_supplier_hash ON score_snapshots(supplier_id, config_hash, scored_at);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_type ON scenario_runs(type);
CREATE INDEX IF NOT EXISTS idx_scenario_runs_hash ON scenario_runs(config_hash);
`

// Migrate creates the schema.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int, error) {
	if len(suppliers) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert suppliers")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO suppliers (id, name, industry, revenue, fields, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			industry = excluded.industry,
			revenue = excluded.revenue,
			fields = excluded.fields,
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert suppliers")
	}
	defer stmt.Close() //nolint:errcheck

	now := time.Now().UTC()
	for _, sup := range suppliers {
		if sup.ID == "" {
			return 0, eris.New("sqlite: supplier id is required")
		}
		fields, err := fieldsJSON(sup.Fields)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: supplier %s", sup.ID)
		}
		if _, err := stmt.ExecContext(ctx, sup.ID, sup.Name, sup.Industry, sup.Revenue, string(fields), now); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert supplier %s", sup.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert suppliers")
	}
	return len(suppliers), nil
}

func (s *SQLiteStore) GetSupplier(ctx context.Context, id string) (*model.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, industry, revenue, fields FROM suppliers WHERE id = ?`, id)
	sup, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: supplier %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get supplier %s", id)
	}
	return sup, nil
}

func (s *SQLiteStore) ListSuppliers(ctx context.Context, filter SupplierFilter) ([]model.Supplier, error) {
	query := `SELECT id, name, industry, revenue, fields FROM suppliers WHERE 1=1`
	var args []any
	if filter.Industry != "" {
		query += ` AND lower(trim(industry)) = lower(trim(?))`
		args = append(args, filter.Industry)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limitOf(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list suppliers")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Supplier
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan supplier")
		}
		out = append(out, *sup)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list suppliers iterate")
}

func (s *SQLiteStore) SaveSnapshots(ctx context.Context, snaps []model.ScoreSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save snapshots")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range snaps {
		prepareSnapshot(&snaps[i])
		snap := snaps[i]
		_, err := tx.ExecContext(ctx,
			`INSERT INTO score_snapshots (id, supplier_id, config_hash, final_score, payload, scored_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.SupplierID, snap.ConfigHash, snap.FinalScore, string(snap.Payload), snap.ScoredAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert snapshot for %s", snap.SupplierID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit snapshots")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, supplierID, configHash string) (*model.ScoreSnapshot, error) {
	var snap model.ScoreSnapshot
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, supplier_id, config_hash, final_score, payload, scored_at
		 FROM score_snapshots WHERE supplier_id = ? AND config_hash = ?
		 ORDER BY scored_at DESC LIMIT 1`,
		supplierID, configHash,
	).Scan(&snap.ID, &snap.SupplierID, &snap.ConfigHash, &snap.FinalScore, &payload, &snap.ScoredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot %s", supplierID)
	}
	snap.Payload = []byte(payload)
	return &snap, nil
}

func (s *SQLiteStore) SaveScenarioRun(ctx context.Context, run *model.ScenarioRun) error {
	prepareRun(run)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scenario_runs (id, type, config_hash, seed, suppliers, failures, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Type), run.ConfigHash, int64(run.Seed), run.Suppliers, run.Failures,
		string(run.Result), run.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert scenario run %s", run.ID)
}

const sqliteRunColumns = `id, type, config_hash, seed, suppliers, failures, result, created_at`

func (s *SQLiteStore) GetScenarioRun(ctx context.Context, id string) (*model.ScenarioRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRunColumns+` FROM scenario_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: scenario run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scenario run %s", id)
	}
	return run, nil
}

func (s *SQLiteStore) ListScenarioRuns(ctx context.Context, filter RunFilter) ([]model.ScenarioRun, error) {
	query := `SELECT ` + sqliteRunColumns + ` FROM scenario_runs WHERE 1=1`
	var args []any
	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	if filter.ConfigHash != "" {
		query += ` AND config_hash = ?`
		args = append(args, filter.ConfigHash)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limitOf(filter.Limit), max(filter.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scenario runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ScenarioRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scenario run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scenario runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSupplier(row scannable) (*model.Supplier, error) {
	var sup model.Supplier
	var revenue sql.NullFloat64
	var fields string
	if err := row.Scan(&sup.ID, &sup.Name, &sup.Industry, &revenue, &fields); err != nil {
		return nil, err
	}
	if revenue.Valid {
		v := revenue.Float64
		sup.Revenue = &v
	}
	var err error
	sup.Fields, err = decodeFields([]byte(fields))
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

func scanRun(row scannable) (*model.ScenarioRun, error) {
	var run model.ScenarioRun
	var typ, result string
	var seed int64
	if err := row.Scan(&run.ID, &typ, &run.ConfigHash, &seed, &run.Suppliers, &run.Failures, &result, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Type = model.ScenarioType(typ)
	run.Seed = uint64(seed)
	run.Result = []byte(result)
	return &run, nil
}
