package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/dataset"
	"github.com/sells-group/esg-scorer/internal/export"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

var (
	scoreInput  string
	scoreFormat string
	scoreOutput string
	scoreSave   bool
)

// scoreReport is the JSON form of a scoring batch.
type scoreReport struct {
	ConfigHash string             `json:"config_hash"`
	Results    []scorer.Result    `json:"results"`
	Rankings   []model.Ranking    `json:"rankings"`
	Failures   []scenario.Failure `json:"failures"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a supplier file and print the ranking",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := checkFormat(scoreFormat, formatTable, formatCSV, formatJSON); err != nil {
			return err
		}

		suppliers, err := dataset.LoadSuppliers(ctx, scoreInput)
		if err != nil {
			return eris.Wrap(err, "load suppliers")
		}

		env, err := initEnv(ctx, "score", suppliers, scoreSave)
		if err != nil {
			return err
		}
		defer env.Close()

		base, err := env.Runner.Baseline(ctx, suppliers)
		if err != nil {
			return eris.Wrap(err, "score suppliers")
		}

		report := scoreReport{
			ConfigHash: scorer.ConfigHash(cfg.Scoring),
			Rankings:   base.Rankings,
			Failures:   base.Failures,
		}
		for _, r := range base.Rankings {
			report.Results = append(report.Results, base.Scores[r.ID])
		}

		if scoreSave {
			if err := saveScores(cmd, env, base, report); err != nil {
				return err
			}
		}

		out, err := openOutput(scoreOutput)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		switch scoreFormat {
		case formatCSV:
			err = export.WriteScores(out, report.Results)
		case formatJSON:
			err = writeIndentedJSON(out, report)
		default:
			formatScoreTable(out, base)
		}
		if err != nil {
			return eris.Wrap(err, "write scores")
		}

		zap.L().Info("scoring complete",
			zap.Int("suppliers", len(suppliers)),
			zap.Int("scored", len(base.Rankings)),
			zap.Int("failures", len(base.Failures)),
			zap.String("config_hash", report.ConfigHash),
		)
		return nil
	},
}

func saveScores(cmd *cobra.Command, env *scoringEnv, base *scenario.Baseline, report scoreReport) error {
	ctx := cmd.Context()
	if _, err := env.Store.UpsertSuppliers(ctx, base.Suppliers); err != nil {
		return eris.Wrap(err, "save suppliers")
	}

	now := time.Now().UTC()
	snaps := make([]model.ScoreSnapshot, 0, len(report.Results))
	for _, res := range report.Results {
		payload, err := json.Marshal(res)
		if err != nil {
			return eris.Wrap(err, "encode score")
		}
		snaps = append(snaps, model.ScoreSnapshot{
			SupplierID: res.SupplierID,
			ConfigHash: report.ConfigHash,
			FinalScore: res.FinalScore,
			Payload:    payload,
			ScoredAt:   now,
		})
	}
	if err := env.Store.SaveSnapshots(ctx, snaps); err != nil {
		return eris.Wrap(err, "save snapshots")
	}
	return nil
}

// formatScoreTable writes the ranking with pillar detail to w.
func formatScoreTable(out io.Writer, base *scenario.Baseline) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tID\tNAME\tE\tS\tG\tCOMPOSITE\tRISK\tFINAL")
	_, _ = fmt.Fprintln(w, "----\t--\t----\t-\t-\t-\t---------\t----\t-----")

	for _, r := range base.Rankings {
		res := base.Scores[r.ID]
		name := r.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%.2f\n",
			r.Rank,
			r.ID,
			name,
			res.Environmental,
			res.Social,
			res.Governance,
			res.Composite,
			res.RiskLevel,
			res.FinalScore,
		)
	}
	for _, f := range base.Failures {
		_, _ = fmt.Fprintf(w, "-\t%s\tFAILED: %s\t\t\t\t\t\t\n", f.SupplierID, f.Message)
	}
	_ = w.Flush()
}

func init() {
	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "supplier file (.csv, .xlsx or .json, required)")
	scoreCmd.Flags().StringVar(&scoreFormat, "format", formatTable, "output format: table, csv or json")
	scoreCmd.Flags().StringVarP(&scoreOutput, "output", "o", "", "output path (default stdout)")
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "persist suppliers and score snapshots to the store")
	_ = scoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scoreCmd)
}
