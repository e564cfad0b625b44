package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-scorer/internal/config"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

const suppliersCSV = `id,name,industry,revenue,co2_tons,renewable_pct
a,Alpha,Textiles,100,20,80
b,Beta,Textiles,100,90,10
c,Gamma,Mining,200,300,40
d,Delta,Mining,100,50,30
`

// testConfig returns a config backed by a temp SQLite file.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "esg.db"),
		},
		Server: config.ServerConfig{Port: 8080, ScenarioRatePerSec: 2, ScenarioBurst: 4},
		Batch:  config.BatchConfig{Concurrency: 2},
		Cache:  config.CacheConfig{Driver: "memory", MaxEntries: 8, TTLMinutes: 1},
		Scenario: config.ScenarioConfig{
			Seed:        42,
			MissingRate: 0.2,
			Imputation:  "industry_mean",
			K:           5,
			TopK:        3,
			MinScore:    50,
		},
		Scoring: scorer.DefaultSettings(),
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runWithContext(t *testing.T, cmd *cobra.Command, args []string) error {
	t.Helper()
	cmd.SetContext(context.Background())
	defer cmd.SetContext(context.TODO())
	return cmd.RunE(cmd, args)
}
