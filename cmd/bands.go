package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/dataset"
)

var bandsCmd = &cobra.Command{
	Use:   "bands",
	Short: "Build and inspect normalization bands",
}

// -- bands build --

var (
	bandsReference string
	bandsOut       string
	bandsVersion   string
	bandsSeed      int64
)

var bandsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Aggregate a reference dataset into a bands document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := dataset.FormatOf(bandsOut)
		if err != nil {
			return err
		}
		if format != dataset.FormatJSON && format != dataset.FormatYAML {
			return eris.Errorf("bands document must be .json or .yaml, got %s", bandsOut)
		}

		rows, err := dataset.LoadReference(ctx, bandsReference)
		if err != nil {
			return eris.Wrap(err, "load reference dataset")
		}

		doc := bands.Build(rows).Document()
		doc.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
		doc.Version = bandsVersion
		if cmd.Flags().Changed("seed") {
			seed := bandsSeed
			doc.Seed = &seed
		}

		f, err := os.Create(bandsOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", bandsOut)
		}
		defer f.Close() //nolint:errcheck

		if format == dataset.FormatYAML {
			enc := yaml.NewEncoder(f)
			enc.SetIndent(2)
			err = enc.Encode(doc)
		} else {
			err = writeIndentedJSON(f, doc)
		}
		if err != nil {
			return eris.Wrap(err, "write bands document")
		}

		zap.L().Info("bands document written",
			zap.String("path", bandsOut),
			zap.Int("rows", len(rows)),
			zap.Int("scopes", len(doc.Bands)),
		)
		return nil
	},
}

// -- bands show --

var bandsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show metadata for the configured bands source",
	RunE: func(cmd *cobra.Command, _ []string) error {
		bc, err := initBands(cmd.Context(), nil)
		if err != nil {
			return err
		}
		formatBandsMetadata(os.Stdout, bc)
		return nil
	},
}

// formatBandsMetadata writes the bands metadata and industries to w.
func formatBandsMetadata(out io.Writer, bc *bands.Context) {
	meta := bc.Metadata()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Source:\t%s\n", meta.Source)
	if meta.Version != "" {
		_, _ = fmt.Fprintf(w, "Version:\t%s\n", meta.Version)
	}
	if meta.GeneratedAt != "" {
		_, _ = fmt.Fprintf(w, "Generated:\t%s\n", meta.GeneratedAt)
	}
	if meta.Seed != nil {
		_, _ = fmt.Fprintf(w, "Seed:\t%d\n", *meta.Seed)
	}
	if meta.Rows > 0 {
		_, _ = fmt.Fprintf(w, "Rows:\t%d\n", meta.Rows)
	}
	_, _ = fmt.Fprintf(w, "Industries:\t%d\n", meta.Industries)
	for _, ind := range bc.Industries() {
		_, _ = fmt.Fprintf(w, "  %s\t\n", ind)
	}
	_ = w.Flush()
}

func init() {
	bandsBuildCmd.Flags().StringVar(&bandsReference, "reference", "", "reference dataset (.csv, .xlsx or .json, required)")
	bandsBuildCmd.Flags().StringVar(&bandsOut, "out", "bands.json", "output document (.json or .yaml)")
	bandsBuildCmd.Flags().StringVar(&bandsVersion, "version", "", "version tag recorded in the document")
	bandsBuildCmd.Flags().Int64Var(&bandsSeed, "seed", 0, "dataset seed recorded in the document")
	_ = bandsBuildCmd.MarkFlagRequired("reference")

	bandsCmd.AddCommand(bandsBuildCmd)
	bandsCmd.AddCommand(bandsShowCmd)
	rootCmd.AddCommand(bandsCmd)
}
