// Package store persists suppliers, score snapshots and scenario runs.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/model"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = eris.New("store: not found")

// defaultLimit caps list queries that do not set one.
const defaultLimit = 100

// SupplierFilter narrows ListSuppliers.
type SupplierFilter struct {
	Industry string `json:"industry,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// RunFilter narrows ListScenarioRuns.
type RunFilter struct {
	Type       model.ScenarioType `json:"type,omitempty"`
	ConfigHash string             `json:"config_hash,omitempty"`
	Limit      int                `json:"limit,omitempty"`
	Offset     int                `json:"offset,omitempty"`
}

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// Store is the persistence interface for the scoring engine.
type Store interface {
	// Suppliers
	UpsertSuppliers(ctx context.Context, suppliers []model.Supplier) (int, error)
	GetSupplier(ctx context.Context, id string) (*model.Supplier, error)
	ListSuppliers(ctx context.Context, filter SupplierFilter) ([]model.Supplier, error)

	// Score snapshots. LatestSnapshot returns nil, nil when nothing matches.
	SaveSnapshots(ctx context.Context, snaps []model.ScoreSnapshot) error
	LatestSnapshot(ctx context.Context, supplierID, configHash string) (*model.ScoreSnapshot, error)

	// Scenario runs. SaveScenarioRun fills ID and CreatedAt when unset.
	SaveScenarioRun(ctx context.Context, run *model.ScenarioRun) error
	GetScenarioRun(ctx context.Context, id string) (*model.ScenarioRun, error)
	ListScenarioRuns(ctx context.Context, filter RunFilter) ([]model.ScenarioRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func prepareRun(run *model.ScenarioRun) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}

func prepareSnapshot(snap *model.ScoreSnapshot) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.ScoredAt.IsZero() {
		snap.ScoredAt = time.Now().UTC()
	}
}

// fieldsJSON encodes supplier fields, storing an empty object for nil.
func fieldsJSON(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(fields)
	return b, eris.Wrap(err, "store: marshal fields")
}

func decodeFields(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal fields")
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return fields, nil
}
