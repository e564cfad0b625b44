package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"score", "scenario", "bands", "import", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "esg-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("settings"))
}

func TestRootCommand_LoadsSettingsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "settings.yaml", "risk_lambda: 2.5\nfinal_score_mode: multiplicative\n")

	settingsPath = path
	t.Cleanup(func() { settingsPath = "" })

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.InDelta(t, 2.5, cfg.Scoring.RiskLambda, 1e-12)
	assert.Equal(t, "multiplicative", string(cfg.Scoring.FinalScoreMode))
}

func TestRootCommand_BadSettingsFile(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeFile(t, "settings.yaml", "pillars:\n  environmental: 0.9\n")

	settingsPath = path
	t.Cleanup(func() { settingsPath = "" })

	err := rootCmd.PersistentPreRunE(rootCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pillars weights should sum to 1")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
	require.NotNil(t, serveCmd.Flags().Lookup("no-store"))
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "export"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
}
