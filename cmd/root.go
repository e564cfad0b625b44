package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/config"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

var (
	cfg          *config.Config
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   "esg-cli",
	Short: "Supplier ESG scoring and scenario analysis",
	Long:  "Scores suppliers on environmental, social and governance metrics against industry bands, applies a risk adjustment, and runs what-if scenarios over the resulting rankings.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		if settingsPath != "" {
			s, err := scorer.LoadSettingsFile(settingsPath)
			if err != nil {
				return err
			}
			cfg.Scoring = s
			zap.L().Info("scoring settings loaded", zap.String("path", settingsPath))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "", "YAML scoring settings file (overrides config scoring section)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
