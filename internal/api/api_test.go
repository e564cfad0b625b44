package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/cache"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/scorer"
	"github.com/sells-group/esg-scorer/internal/store"
)

func ptrFloat64(v float64) *float64 { return &v }

func testSuppliers() []model.Supplier {
	return []model.Supplier{
		{ID: "a", Name: "Alpha", Industry: "Textiles", Revenue: ptrFloat64(100), Fields: map[string]any{"co2_tons": 20.0, "renewable_pct": 80.0}},
		{ID: "b", Name: "Beta", Industry: "Textiles", Revenue: ptrFloat64(100), Fields: map[string]any{"co2_tons": 90.0, "renewable_pct": 10.0}},
		{ID: "c", Name: "Gamma", Industry: "Mining", Revenue: ptrFloat64(200), Fields: map[string]any{"co2_tons": 300.0, "renewable_pct": 40.0}},
	}
}

const suppliersJSON = `[
	{"id":"a","name":"Alpha","industry":"Textiles","revenue":100,"co2_tons":20,"renewable_pct":80},
	{"id":"b","name":"Beta","industry":"Textiles","revenue":100,"co2_tons":90,"renewable_pct":10},
	{"id":"c","name":"Gamma","industry":"Mining","revenue":200,"co2_tons":300,"renewable_pct":40}
]`

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestServer(t *testing.T, st store.Store, cfg ServerConfig) *Server {
	t.Helper()
	settings := scorer.DefaultSettings()
	bc := bands.Build(testSuppliers())
	h := NewHandler(Deps{
		Settings: settings,
		Bands:    bc,
		Runner:   scenario.NewRunner(settings, bc, 2),
		Store:    st,
		Cache:    cache.NewMemory(16),
		CacheTTL: time.Minute,
		Defaults: scenario.DefaultParams(),
		Version:  "test",
	})
	return NewServer(cfg, h)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})
	w := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	decodeBody(t, w, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["store"])
	assert.Equal(t, true, body["cache"])
}

func TestBandsMetadata(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})
	w := do(t, s, http.MethodGet, "/bands/metadata", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Metadata   bands.Metadata `json:"metadata"`
		Industries []string       `json:"industries"`
	}
	decodeBody(t, w, &body)
	assert.Equal(t, "reference", body.Metadata.Source)
	assert.Equal(t, 3, body.Metadata.Rows)
	assert.Equal(t, []string{"mining", "textiles"}, body.Industries)
}

func TestScore_RanksAndPersistsSnapshots(t *testing.T) {
	st := newTestStore(t)
	s := newTestServer(t, st, ServerConfig{})

	w := do(t, s, http.MethodPost, "/score", suppliersJSON)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScoreResponse
	decodeBody(t, w, &resp)
	require.Len(t, resp.Results, 3)
	require.Len(t, resp.Rankings, 3)
	assert.NotEmpty(t, resp.ConfigHash)

	for i, r := range resp.Rankings {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, resp.Rankings[i-1].Score, r.Score)
		}
	}
	// Alpha has the lowest intensity and highest renewable share in its industry.
	assert.Equal(t, "a", resp.Rankings[0].ID)

	snap, err := st.LatestSnapshot(context.Background(), "a", resp.ConfigHash)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.InDelta(t, resp.Rankings[0].Score, snap.FinalScore, 1e-9)
}

func TestScore_ReportsUnscorableSuppliers(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})

	body := `[
		{"id":"a","industry":"Textiles","revenue":100,"co2_tons":20},
		{"name":"no id","industry":"Textiles","revenue":100,"co2_tons":30},
		{"id":"a","industry":"Mining","revenue":100,"co2_tons":90}
	]`
	w := do(t, s, http.MethodPost, "/score", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScoreResponse
	decodeBody(t, w, &resp)
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Rankings, 1)
	assert.Equal(t, "a", resp.Rankings[0].ID)

	require.Len(t, resp.Failures, 2)
	assert.Equal(t, "", resp.Failures[0].SupplierID)
	assert.Contains(t, resp.Failures[0].Message, "empty")
	assert.Equal(t, "a", resp.Failures[1].SupplierID)
	assert.Equal(t, "duplicate supplier id", resp.Failures[1].Message)
}

func TestScore_InvalidBody(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"object instead of array", `{"id":"a"}`},
		{"malformed", `[{"id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/score", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}

func TestScoreBreakdown(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})

	w := do(t, s, http.MethodPost, "/score/breakdown",
		`{"id":"a","industry":"Textiles","revenue":100,"co2_tons":20,"renewable_pct":80,"anti_corruption_policy":"yes"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var b scorer.Breakdown
	decodeBody(t, w, &b)
	assert.Equal(t, "a", b.SupplierID)
	assert.Equal(t, "Textiles", b.Industry)
	assert.NotEmpty(t, b.NormalizedMetrics)
	assert.GreaterOrEqual(t, b.FinalScore, 0.0)
	assert.LessOrEqual(t, b.FinalScore, 100.0)

	w = do(t, s, http.MethodPost, "/score/breakdown", `[]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunScenario_Errors(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{})

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown type", "/scenarios/s9", `{}`, http.StatusNotFound},
		{"invalid params", "/scenarios/s1", `{"params":{"min_score":200}}`, http.StatusBadRequest},
		{"malformed body", "/scenarios/s1", `{"params":`, http.StatusBadRequest},
		{"no suppliers and no store", "/scenarios/s1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRunScenario_CachesAndPersists(t *testing.T) {
	st := newTestStore(t)
	s := newTestServer(t, st, ServerConfig{})

	body := `{"params":{"seed":7,"perturbations":[0.1,-0.1]},"suppliers":` + suppliersJSON + `}`

	w := do(t, s, http.MethodPost, "/scenarios/s2", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "miss", w.Header().Get("X-Cache"))

	var first ScenarioResponse
	decodeBody(t, w, &first)
	assert.NotEmpty(t, first.RunID)
	assert.False(t, first.Cached)
	require.NotNil(t, first.Result)
	assert.Equal(t, model.ScenarioSensitivity, first.Result.Type)
	assert.Equal(t, uint64(7), first.Result.Seed)
	assert.Len(t, first.Result.Sensitivity, 2)

	w = do(t, s, http.MethodPost, "/scenarios/s2", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Cache"))

	var second ScenarioResponse
	decodeBody(t, w, &second)
	assert.True(t, second.Cached)
	assert.Empty(t, second.RunID)
	assert.Equal(t, first.Result.Baseline, second.Result.Baseline)
}

func TestRunScenario_LoadsStoredSuppliers(t *testing.T) {
	st := newTestStore(t)
	_, err := st.UpsertSuppliers(context.Background(), testSuppliers())
	require.NoError(t, err)
	s := newTestServer(t, st, ServerConfig{})

	w := do(t, s, http.MethodPost, "/scenarios/s1", `{"params":{"margin_percent":10}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ScenarioResponse
	decodeBody(t, w, &resp)
	require.NotNil(t, resp.Result.Utility)
	assert.Equal(t, 3, resp.Result.Utility.Total)
	assert.Len(t, resp.Result.Baseline, 3)
}

func TestRuns_GetListAndExport(t *testing.T) {
	st := newTestStore(t)
	s := newTestServer(t, st, ServerConfig{})

	w := do(t, s, http.MethodPost, "/scenarios/s4", `{"suppliers":`+suppliersJSON+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var run ScenarioResponse
	decodeBody(t, w, &run)
	require.NotEmpty(t, run.RunID)

	w = do(t, s, http.MethodGet, "/runs/"+run.RunID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ID     string             `json:"id"`
		Type   model.ScenarioType `json:"type"`
		Result scenario.Result    `json:"result"`
	}
	decodeBody(t, w, &got)
	assert.Equal(t, run.RunID, got.ID)
	assert.Equal(t, model.ScenarioAblation, got.Type)
	require.NotNil(t, got.Result.Ablation)

	w = do(t, s, http.MethodGet, "/runs?type=s4", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []model.ScenarioRun `json:"runs"`
	}
	decodeBody(t, w, &list)
	require.Len(t, list.Runs, 1)
	assert.Nil(t, list.Runs[0].Result)

	w = do(t, s, http.MethodGet, "/runs/"+run.RunID+"/export.zip", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "baseline.csv")
	assert.Contains(t, names, "s4_ablation.csv")
	assert.Contains(t, names, "result.json")
}

func TestRuns_MissingAndNoStore(t *testing.T) {
	s := newTestServer(t, newTestStore(t), ServerConfig{})
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/runs/nope", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/runs/nope/export.zip", "").Code)

	bare := newTestServer(t, nil, ServerConfig{})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, bare, http.MethodGet, "/runs", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, bare, http.MethodGet, "/runs/x", "").Code)
}

func TestRateLimit_OnlyScenarioRoutes(t *testing.T) {
	s := newTestServer(t, nil, ServerConfig{ScenarioRatePerSec: 0.001, ScenarioBurst: 1})
	body := `{"suppliers":` + suppliersJSON + `}`

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/scenarios/s1", body).Code)

	w := do(t, s, http.MethodPost, "/scenarios/s1", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	for range 3 {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
