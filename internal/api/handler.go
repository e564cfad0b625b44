package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/cache"
	"github.com/sells-group/esg-scorer/internal/dataset"
	"github.com/sells-group/esg-scorer/internal/export"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/scorer"
	"github.com/sells-group/esg-scorer/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

// storeLoadLimit caps how many stored suppliers a scenario loads.
const storeLoadLimit = 100000

// Deps are the collaborators a Handler needs. Store and Cache may be nil.
type Deps struct {
	Settings scorer.Settings
	Bands    *bands.Context
	Runner   *scenario.Runner
	Store    store.Store
	Cache    cache.Cache
	CacheTTL time.Duration
	Defaults scenario.Params
	Version  string
}

// Handler serves the API routes.
type Handler struct {
	deps Deps
}

// NewHandler fills missing optional dependencies.
func NewHandler(d Deps) *Handler {
	if d.Cache == nil {
		d.Cache = cache.Nop{}
	}
	if d.Runner == nil {
		d.Runner = scenario.NewRunner(d.Settings, d.Bands, scenario.DefaultConcurrency)
	}
	return &Handler{deps: d}
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.deps.Version,
		"store":   h.deps.Store != nil,
		"cache":   h.deps.Cache.Ping(r.Context()) == nil,
	})
}

// BandsMetadata handles GET /bands/metadata.
func (h *Handler) BandsMetadata(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metadata":   h.deps.Bands.Metadata(),
		"industries": h.deps.Bands.Industries(),
	})
}

// ScoreResponse is returned by POST /score.
type ScoreResponse struct {
	ConfigHash string             `json:"config_hash"`
	Results    []scorer.Result    `json:"results"`
	Rankings   []model.Ranking    `json:"rankings"`
	Failures   []scenario.Failure `json:"failures"`
}

// Score handles POST /score. The body is a JSON array of supplier objects.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	suppliers, err := dataset.ParseSuppliers(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes), dataset.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of suppliers")
		return
	}

	hash := scorer.ConfigHash(h.deps.Settings)
	resp := ScoreResponse{
		ConfigHash: hash,
		Results:    make([]scorer.Result, 0, len(suppliers)),
		Failures:   []scenario.Failure{},
	}
	var snaps []model.ScoreSnapshot
	var entries []model.Ranking
	seen := make(map[string]bool, len(suppliers))
	now := time.Now().UTC()

	for _, sup := range suppliers {
		switch {
		case sup.ID == "":
			resp.Failures = append(resp.Failures, scenario.Failure{Message: "supplier id is empty"})
			continue
		case seen[sup.ID]:
			resp.Failures = append(resp.Failures, scenario.Failure{SupplierID: sup.ID, Message: "duplicate supplier id"})
			continue
		}
		seen[sup.ID] = true

		b := scorer.ScoreSupplierWithBreakdown(sup, h.deps.Settings, h.deps.Bands)
		res := b.Result()
		resp.Results = append(resp.Results, res)
		entries = append(entries, model.Ranking{ID: sup.ID, Name: sup.Name, Score: res.FinalScore})
		if h.deps.Store != nil {
			payload, err := json.Marshal(b)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "encode breakdown")
				return
			}
			snaps = append(snaps, model.ScoreSnapshot{
				SupplierID: sup.ID, ConfigHash: hash, FinalScore: res.FinalScore, Payload: payload, ScoredAt: now,
			})
		}
	}
	resp.Rankings = scorer.Rank(entries)

	if len(snaps) > 0 {
		if err := h.deps.Store.SaveSnapshots(r.Context(), snaps); err != nil {
			zap.L().Error("api: save snapshots", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ScoreBreakdown handles POST /score/breakdown for one supplier object.
func (h *Handler) ScoreBreakdown(w http.ResponseWriter, r *http.Request) {
	var obj map[string]any
	if err := decodeJSON(w, r, &obj); err != nil || obj == nil {
		writeError(w, http.StatusBadRequest, "body must be a supplier object")
		return
	}
	sup := dataset.FromObject(obj)
	writeJSON(w, http.StatusOK, scorer.ScoreSupplierWithBreakdown(sup, h.deps.Settings, h.deps.Bands))
}

// ScenarioRequest is the body of POST /scenarios/{type}. When Suppliers
// is empty the stored suppliers are used.
type ScenarioRequest struct {
	Params    *scenario.Params `json:"params,omitempty"`
	Suppliers []map[string]any `json:"suppliers,omitempty"`
}

// ScenarioResponse wraps a scenario result with its persisted run ID.
type ScenarioResponse struct {
	RunID  string           `json:"run_id,omitempty"`
	Cached bool             `json:"cached"`
	Result *scenario.Result `json:"result"`
}

// RunScenario handles POST /scenarios/{type}.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	typ := model.ScenarioType(chi.URLParam(r, "type"))
	if !typ.Valid() {
		writeError(w, http.StatusNotFound, "unknown scenario type "+string(typ))
		return
	}

	var req ScenarioRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON request body")
			return
		}
	}
	params := h.deps.Defaults
	if req.Params != nil {
		params = *req.Params
	}
	if err := params.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	suppliers := make([]model.Supplier, 0, len(req.Suppliers))
	for _, obj := range req.Suppliers {
		suppliers = append(suppliers, dataset.FromObject(obj))
	}
	if len(suppliers) == 0 {
		if h.deps.Store == nil {
			writeError(w, http.StatusBadRequest, "suppliers are required when no store is configured")
			return
		}
		stored, err := h.deps.Store.ListSuppliers(ctx, store.SupplierFilter{Limit: storeLoadLimit})
		if err != nil {
			zap.L().Error("api: load suppliers", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "load suppliers")
			return
		}
		suppliers = stored
	}

	key := "scenario:" + scorer.ConfigHash(h.deps.Settings, typ, params, suppliers)
	var cached scenario.Result
	if ok, err := cache.GetJSON(ctx, h.deps.Cache, key, &cached); err != nil {
		zap.L().Warn("api: cache read", zap.String("key", key), zap.Error(err))
	} else if ok {
		w.Header().Set("X-Cache", "hit")
		writeJSON(w, http.StatusOK, ScenarioResponse{Cached: true, Result: &cached})
		return
	}

	res, err := h.deps.Runner.Run(ctx, typ, suppliers, params)
	if err != nil {
		zap.L().Error("api: scenario failed", zap.String("type", string(typ)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scenario failed")
		return
	}
	if err := cache.SetJSON(ctx, h.deps.Cache, key, res, h.deps.CacheTTL); err != nil {
		zap.L().Warn("api: cache write", zap.String("key", key), zap.Error(err))
	}

	resp := ScenarioResponse{Result: res}
	if h.deps.Store != nil {
		run, err := runRecord(res, len(suppliers))
		if err == nil {
			err = h.deps.Store.SaveScenarioRun(ctx, run)
		}
		if err != nil {
			zap.L().Error("api: save scenario run", zap.Error(err))
		} else {
			resp.RunID = run.ID
		}
	}
	w.Header().Set("X-Cache", "miss")
	writeJSON(w, http.StatusOK, resp)
}

// ListRuns handles GET /runs?type=&limit=&offset=.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	runs, err := h.deps.Store.ListScenarioRuns(r.Context(), store.RunFilter{
		Type:       model.ScenarioType(q.Get("type")),
		ConfigHash: q.Get("config_hash"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		zap.L().Error("api: list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	for i := range runs {
		runs[i].Result = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, res, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          run.ID,
		"type":        run.Type,
		"config_hash": run.ConfigHash,
		"seed":        run.Seed,
		"suppliers":   run.Suppliers,
		"failures":    run.Failures,
		"created_at":  run.CreatedAt,
		"result":      res,
	})
}

// ExportRun handles GET /runs/{id}/export.zip.
func (h *Handler) ExportRun(w http.ResponseWriter, r *http.Request) {
	run, res, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteBundle(&buf, res); err != nil {
		zap.L().Error("api: export run", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+run.ID+`.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (*model.ScenarioRun, *scenario.Result, bool) {
	if h.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return nil, nil, false
	}
	id := chi.URLParam(r, "id")
	run, err := h.deps.Store.GetScenarioRun(r.Context(), id)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, nil, false
	}
	if err != nil {
		zap.L().Error("api: get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run")
		return nil, nil, false
	}
	var res scenario.Result
	if err := json.Unmarshal(run.Result, &res); err != nil {
		zap.L().Error("api: decode run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "decode run")
		return nil, nil, false
	}
	return run, &res, true
}

// runRecord builds the persisted form of a scenario result.
func runRecord(res *scenario.Result, suppliers int) (*model.ScenarioRun, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "api: encode scenario result")
	}
	return &model.ScenarioRun{
		Type:       res.Type,
		ConfigHash: res.ConfigHash,
		Seed:       res.Seed,
		Suppliers:  suppliers,
		Failures:   len(res.Failures),
		Result:     payload,
	}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
