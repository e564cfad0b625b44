package db

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a staged bulk upsert.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
	// UpdateCols defaults to every column that is not a conflict key.
	UpdateCols []string
}

func (c UpsertConfig) validate() error {
	if c.Table == "" {
		return eris.New("db: upsert: table is required")
	}
	if len(c.Columns) == 0 {
		return eris.New("db: upsert: no columns specified")
	}
	if len(c.ConflictKeys) == 0 {
		return eris.New("db: upsert: no conflict keys specified")
	}
	return nil
}

func (c UpsertConfig) updateCols() []string {
	if c.UpdateCols != nil {
		return c.UpdateCols
	}
	var out []string
	for _, col := range c.Columns {
		if !slices.Contains(c.ConflictKeys, col) {
			out = append(out, col)
		}
	}
	return out
}

// stagingTable names the temp table used for table.
func stagingTable(table string) string {
	return "_stage_" + strings.ReplaceAll(table, ".", "_")
}

// upsertSQL builds the INSERT ... SELECT ... ON CONFLICT statement that
// moves staged rows into the target.
func upsertSQL(c UpsertConfig) string {
	cols := quoteAndJoin(c.Columns)
	action := "DO NOTHING"
	if upd := c.updateCols(); len(upd) > 0 {
		sets := make([]string, len(upd))
		for i, col := range upd {
			q := pgx.Identifier{col}.Sanitize()
			sets[i] = q + " = EXCLUDED." + q
		}
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) %s",
		identifier(c.Table).Sanitize(), cols, cols,
		pgx.Identifier{stagingTable(c.Table)}.Sanitize(),
		quoteAndJoin(c.ConflictKeys), action)
}

// BulkUpsert COPYs rows into a temp table and merges them into the target
// inside one transaction. It returns the number of rows merged.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := cfg.validate(); err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: upsert: begin tx")
	}
	defer tx.Rollback(ctx)

	stage := stagingTable(cfg.Table)
	create := fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{stage}.Sanitize(), identifier(cfg.Table).Sanitize())
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: stage %s", cfg.Table)
	}
	if _, err := CopyFrom(ctx, tx, stage, cfg.Columns, rows); err != nil {
		return 0, eris.Wrapf(err, "db: upsert: copy %s", cfg.Table)
	}

	tag, err := tx.Exec(ctx, upsertSQL(cfg))
	if err != nil {
		return 0, eris.Wrapf(err, "db: upsert: merge %s", cfg.Table)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: upsert: commit tx")
	}
	return tag.RowsAffected(), nil
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
