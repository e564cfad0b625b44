package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "esg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func ptrFloat64(v float64) *float64 { return &v }

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_UpsertAndGetSupplier(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertSuppliers(ctx, []model.Supplier{
		{ID: "s1", Name: "Acme", Industry: "Textiles", Revenue: ptrFloat64(1000), Fields: map[string]any{"co2_tons": 500.0}},
		{ID: "s2", Name: "Beta", Industry: "Mining"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sup, err := st.GetSupplier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", sup.Name)
	require.NotNil(t, sup.Revenue)
	assert.InDelta(t, 1000, *sup.Revenue, 1e-9)
	assert.InDelta(t, 500.0, sup.Fields["co2_tons"], 1e-9)

	sup, err = st.GetSupplier(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, sup.Revenue)
	assert.Nil(t, sup.Fields)
}

func TestSQLite_UpsertReplacesExisting(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertSuppliers(ctx, []model.Supplier{{ID: "s1", Name: "Old", Revenue: ptrFloat64(5)}})
	require.NoError(t, err)
	_, err = st.UpsertSuppliers(ctx, []model.Supplier{{ID: "s1", Name: "New"}})
	require.NoError(t, err)

	sup, err := st.GetSupplier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "New", sup.Name)
	assert.Nil(t, sup.Revenue)
}

func TestSQLite_UpsertRejectsEmptyID(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.UpsertSuppliers(context.Background(), []model.Supplier{{ID: "ok"}, {Name: "no id"}})
	require.Error(t, err)

	// the batch is rolled back
	_, err = st.GetSupplier(context.Background(), "ok")
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_GetSupplierNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetSupplier(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ListSuppliers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	_, err := st.UpsertSuppliers(ctx, []model.Supplier{
		{ID: "c", Industry: "Textiles"},
		{ID: "a", Industry: "textiles "},
		{ID: "b", Industry: "Mining"},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter SupplierFilter
		want   []string
	}{
		{"all ordered by id", SupplierFilter{}, []string{"a", "b", "c"}},
		{"industry folded", SupplierFilter{Industry: "TEXTILES"}, []string{"a", "c"}},
		{"limit", SupplierFilter{Limit: 2}, []string{"a", "b"}},
		{"offset", SupplierFilter{Limit: 2, Offset: 2}, []string{"c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListSuppliers(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, s := range got {
				ids[i] = s.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSQLite_Snapshots(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snaps := []model.ScoreSnapshot{
		{SupplierID: "s1", ConfigHash: "h1", FinalScore: 40, Payload: []byte(`{"v":1}`), ScoredAt: base},
		{SupplierID: "s1", ConfigHash: "h1", FinalScore: 45, Payload: []byte(`{"v":2}`), ScoredAt: base.Add(time.Hour)},
		{SupplierID: "s1", ConfigHash: "h2", FinalScore: 99, Payload: []byte(`{}`), ScoredAt: base.Add(2 * time.Hour)},
	}
	require.NoError(t, st.SaveSnapshots(ctx, snaps))
	assert.NotEmpty(t, snaps[0].ID)

	got, err := st.LatestSnapshot(ctx, "s1", "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 45, got.FinalScore, 1e-9)
	assert.JSONEq(t, `{"v":2}`, string(got.Payload))

	got, err = st.LatestSnapshot(ctx, "s1", "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ScenarioRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.ScenarioRun{
		Type: model.ScenarioUtility, ConfigHash: "h1", Seed: 42, Suppliers: 10,
		Result: []byte(`{"type":"s1"}`), CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	second := &model.ScenarioRun{
		Type: model.ScenarioMissingness, ConfigHash: "h1", Seed: 7, Suppliers: 10, Failures: 1,
		Result: []byte(`{"type":"s3"}`), CreatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.SaveScenarioRun(ctx, first))
	require.NoError(t, st.SaveScenarioRun(ctx, second))
	assert.Len(t, first.ID, 36)

	got, err := st.GetScenarioRun(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioMissingness, got.Type)
	assert.Equal(t, uint64(7), got.Seed)
	assert.Equal(t, 1, got.Failures)
	assert.JSONEq(t, `{"type":"s3"}`, string(got.Result))

	runs, err := st.ListScenarioRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)

	runs, err = st.ListScenarioRuns(ctx, RunFilter{Type: model.ScenarioUtility})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, first.ID, runs[0].ID)

	_, err = st.GetScenarioRun(ctx, "missing")
	assert.True(t, eris.Is(err, ErrNotFound))
}
