package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/cache"
	"github.com/sells-group/esg-scorer/internal/config"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mongo"

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitEnv_WithStore(t *testing.T) {
	cfg = testConfig(t)

	env, err := initEnv(context.Background(), "score", nil, true)
	require.NoError(t, err)
	defer env.Close()

	require.NotNil(t, env.Store)
	require.NotNil(t, env.Runner)
	assert.IsType(t, cache.Nop{}, env.Cache)
}

func TestInitEnv_ValidationFails(t *testing.T) {
	cfg = testConfig(t)
	cfg.Batch.Concurrency = 0

	_, err := initEnv(context.Background(), "score", nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch.concurrency")
}

func TestInitCache(t *testing.T) {
	cfg = testConfig(t)
	c := initCache()
	assert.IsType(t, &cache.Memory{}, c)

	cfg.Cache.Driver = "memcached"
	assert.IsType(t, cache.Nop{}, initCache())
}

func TestScenarioDefaults(t *testing.T) {
	cfg = testConfig(t)
	cfg.Scenario = config.ScenarioConfig{
		Seed:        7,
		MissingRate: 0.3,
		Imputation:  scenario.ImputeKNN,
		K:           4,
		TopK:        2,
		MinScore:    60,
	}

	p := scenarioDefaults()
	assert.Equal(t, uint64(7), p.Seed)
	assert.InDelta(t, 0.3, p.MissingRate, 1e-12)
	assert.Equal(t, scenario.ImputeKNN, p.Imputation)
	assert.Equal(t, 4, p.K)
	assert.Equal(t, 2, p.TopK)
	require.NotNil(t, p.MinScore)
	assert.InDelta(t, 60, *p.MinScore, 1e-12)
	assert.NoError(t, p.Validate())
}

func TestFormatRunsList(t *testing.T) {
	var buf bytes.Buffer
	formatRunsList(&buf, []model.ScenarioRun{{
		ID:         "0123456789abcdef",
		Type:       model.ScenarioSensitivity,
		ConfigHash: "fedcba9876543210",
		Seed:       42,
		Suppliers:  10,
		Failures:   1,
		CreatedAt:  time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}})

	out := buf.String()
	assert.Contains(t, out, "01234567")
	assert.Contains(t, out, "s2")
	assert.Contains(t, out, "fedcba98")
	assert.Contains(t, out, "2026-03-01 12:30")
	assert.NotContains(t, out, "0123456789abcdef")
}

func TestScenarioRunRecord(t *testing.T) {
	res := &scenario.Result{
		Type:       model.ScenarioUtility,
		Seed:       3,
		ConfigHash: "abc",
		Failures:   []scenario.Failure{{SupplierID: "x", Message: "bad"}},
	}
	run, err := scenarioRunRecord(res, 5)
	require.NoError(t, err)
	assert.Equal(t, model.ScenarioUtility, run.Type)
	assert.Equal(t, 5, run.Suppliers)
	assert.Equal(t, 1, run.Failures)

	var back scenario.Result
	require.NoError(t, json.Unmarshal(run.Result, &back))
	assert.Equal(t, "abc", back.ConfigHash)
}
