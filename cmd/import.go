package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/dataset"
)

var importPath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import suppliers from a file into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("import"); err != nil {
			return err
		}

		suppliers, err := dataset.LoadSuppliers(ctx, importPath)
		if err != nil {
			return eris.Wrap(err, "load suppliers")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := st.UpsertSuppliers(ctx, suppliers)
		if err != nil {
			return eris.Wrap(err, "import suppliers")
		}

		zap.L().Info("import complete",
			zap.Int("upserted", n),
			zap.String("path", importPath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "input", "", "supplier file (.csv, .xlsx or .json, required)")
	_ = importCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(importCmd)
}
