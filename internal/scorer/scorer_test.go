package scorer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/metric"
	"github.com/sells-group/esg-scorer/internal/model"
)

func testBands(t *testing.T) *bands.Context {
	t.Helper()
	bc, err := bands.FromDocument(bands.Document{Bands: map[string]map[string]bands.Band{
		"global": {
			"emission_intensity": {Min: 0, Max: 2, Avg: 1},
			"renewable_pct":      {Min: 0, Max: 100, Avg: 50},
			"water_intensity":    {Min: 0, Max: 10, Avg: 5},
			"waste_intensity":    {Min: 0, Max: 1, Avg: 0.5},
			"injury_rate":        {Min: 0, Max: 5, Avg: 2.5},
			"training_hours":     {Min: 0, Max: 40, Avg: 20},
			"wage_ratio":         {Min: 0.8, Max: 1.1, Avg: 1},
			"diversity_pct":      {Min: 0, Max: 100, Avg: 50},
			"board_diversity":    {Min: 0, Max: 100, Avg: 50},
			"board_independence": {Min: 0, Max: 100, Avg: 50},
			"transparency_score": {Min: 0, Max: 100, Avg: 50},
		},
		"textiles": {
			"renewable_pct": {Min: 40, Max: 60, Avg: 50},
		},
	}})
	require.NoError(t, err)
	return bc
}

func fullSupplier() model.Supplier {
	rev := 100.0
	return model.Supplier{
		ID:       "sup-1",
		Name:     "Acme Weaving",
		Industry: "Textiles",
		Revenue:  &rev,
		Fields: map[string]any{
			"co2_tons":           100.0,
			"renewable_pct":      50.0,
			"water_use":          500.0,
			"waste":              50.0,
			"injury_rate":        2.5,
			"training_hours":     20.0,
			"wage_ratio":         1.0,
			"diversity_pct":      50.0,
			"board_diversity":    50.0,
			"board_independence": 50.0,
			"transparency_score": 50.0,
			"anti_corruption":    true,
			"geo_risk":           0.6,
			"climate_risk":       0.5,
			"labor_risk":         0.4,
		},
	}
}

func TestScoreSupplier_EndToEnd(t *testing.T) {
	res := ScoreSupplier(fullSupplier(), DefaultSettings(), testBands(t))

	assert.Equal(t, "sup-1", res.SupplierID)
	assert.InDelta(t, 50, res.Environmental, 1e-9)
	assert.InDelta(t, 60, res.Social, 1e-9)
	assert.InDelta(t, 60, res.Governance, 1e-9)
	assert.InDelta(t, 56, res.Composite, 1e-9)
	assert.InDelta(t, 1.0, res.CompletenessRatio, 1e-12)
	require.NotNil(t, res.RiskPenalty)
	assert.InDelta(t, 20, *res.RiskPenalty, 1e-6)
	assert.InDelta(t, 0.2, res.RiskFactor, 1e-6)
	assert.InDelta(t, 36, res.FinalScore, 1e-6)
}

func TestScoreSupplier_MultiplicativeMode(t *testing.T) {
	s := DefaultSettings()
	s.FinalScoreMode = FinalMultiplicative

	res := ScoreSupplier(fullSupplier(), s, testBands(t))
	assert.InDelta(t, 56*0.8, res.FinalScore, 1e-6)
}

func TestScoreSupplier_Idempotent(t *testing.T) {
	bc := testBands(t)
	s := DefaultSettings()
	sup := fullSupplier()

	first := ScoreSupplier(sup, s, bc)
	second := ScoreSupplier(sup, s, bc)
	assert.Equal(t, first, second)
	assert.Equal(t, fullSupplier().Fields, sup.Fields)
}

func TestScoreSupplier_CompositeIsWeightedPillars(t *testing.T) {
	bc := testBands(t)
	weightSets := []PillarWeights{
		{Environmental: 0.4, Social: 0.3, Governance: 0.3},
		{Environmental: 1, Social: 0, Governance: 0},
		{Environmental: 0.2, Social: 0.5, Governance: 0.3},
	}
	sup := fullSupplier()
	sup.Fields["renewable_pct"] = 90.0
	sup.Fields["injury_rate"] = 4.0

	for _, w := range weightSets {
		s := DefaultSettings()
		s.Pillars = w
		res := ScoreSupplier(sup, s, bc)
		want := res.Environmental*w.Environmental + res.Social*w.Social + res.Governance*w.Governance
		assert.InDelta(t, want, res.Composite, 1e-3)
	}
}

func TestScoreSupplier_IndustryBands(t *testing.T) {
	bc := testBands(t)
	sup := fullSupplier()
	sup.Fields["renewable_pct"] = 60.0

	s := DefaultSettings()
	b := ScoreSupplierWithBreakdown(sup, s, bc)
	assert.InDelta(t, 1.0, b.NormalizedMetrics[metric.RenewablePct].Normalized, 1e-9)
	assert.True(t, b.UseIndustryBands)

	s.UseIndustryBands = false
	b = ScoreSupplierWithBreakdown(sup, s, bc)
	assert.InDelta(t, 0.6, b.NormalizedMetrics[metric.RenewablePct].Normalized, 1e-9)
}

func TestScoreSupplier_EmptyRecord(t *testing.T) {
	res := ScoreSupplier(model.Supplier{ID: "empty"}, DefaultSettings(), testBands(t))

	assert.Equal(t, 0.0, res.CompletenessRatio)
	require.NotNil(t, res.RiskPenalty)
	assert.Equal(t, 0.0, *res.RiskPenalty)
	assert.GreaterOrEqual(t, res.FinalScore, 0.0)
	assert.LessOrEqual(t, res.FinalScore, 100.0)
	// imputed averages land mid-band; anti-corruption absent contributes 0
	assert.InDelta(t, 40, res.Governance, 1e-9)
}

func TestScoreSupplier_NilBands(t *testing.T) {
	res := ScoreSupplier(fullSupplier(), DefaultSettings(), nil)
	assert.GreaterOrEqual(t, res.FinalScore, 0.0)
	assert.LessOrEqual(t, res.FinalScore, 100.0)
}

func TestScoreSupplier_CompletenessDoesNotAlterComposite(t *testing.T) {
	bc := testBands(t)
	sup := fullSupplier()
	delete(sup.Fields, "training_hours") // imputed to avg 20, the same value
	res := ScoreSupplier(sup, DefaultSettings(), bc)

	assert.InDelta(t, 56, res.Composite, 1e-9)
	assert.InDelta(t, 11.0/12.0, res.CompletenessRatio, 1e-12)
}

func TestScoreSupplier_DisclosureCap(t *testing.T) {
	bc := testBands(t)
	s := DefaultSettings()
	s.DisclosureCapEnabled = true
	s.RiskPenaltyEnabled = false
	s.DisclosureCapScore = 30

	sup := fullSupplier()
	sup.Fields = map[string]any{"renewable_pct": 100.0, "anti_corruption": true}

	res := ScoreSupplier(sup, s, bc)
	assert.True(t, res.DisclosureCapped)
	assert.Equal(t, 30.0, res.FinalScore)
}

func TestResult_PenaltyJSONSentinel(t *testing.T) {
	bc := testBands(t)

	s := DefaultSettings()
	s.RiskPenaltyEnabled = false
	data, err := json.Marshal(ScoreSupplier(model.Supplier{ID: "x"}, s, bc))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk_penalty":null`)

	data, err = json.Marshal(ScoreSupplier(model.Supplier{ID: "x"}, DefaultSettings(), bc))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk_penalty":0`)
}

func TestBreakdown_JSON(t *testing.T) {
	b := ScoreSupplierWithBreakdown(fullSupplier(), DefaultSettings(), testBands(t))
	data, err := json.Marshal(b)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "normalized_metrics")
	assert.Contains(t, decoded, "pillar_scores")
	assert.Contains(t, decoded, "weights")
	assert.Contains(t, decoded, "risk")
	assert.Equal(t, "additive", decoded["final_score_mode"])
}

func TestRank(t *testing.T) {
	in := []model.Ranking{
		{ID: "a", Score: 50},
		{ID: "b", Score: 70},
		{ID: "c", Score: 50},
		{ID: "d", Score: 90},
	}
	out := Rank(in)

	assert.Equal(t, []string{"d", "b", "a", "c"}, model.RankingIDs(out))
	for i, r := range out {
		assert.Equal(t, i+1, r.Rank)
	}
	assert.Equal(t, 0, in[0].Rank, "input untouched")
}

func TestConfigHash(t *testing.T) {
	a := ConfigHash(DefaultSettings())
	b := ConfigHash(DefaultSettings())
	assert.Len(t, a, 32)
	assert.Equal(t, a, b)

	s := DefaultSettings()
	s.RiskLambda = 2
	assert.NotEqual(t, a, ConfigHash(s))
	assert.NotEqual(t, a, ConfigHash(DefaultSettings(), "s2"))
}
