package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/esg-scorer/internal/export"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved scenario runs",
	Long:  "Commands for listing, viewing, and exporting persisted scenario runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scenario runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		typ, _ := cmd.Flags().GetString("type")
		hash, _ := cmd.Flags().GetString("config-hash")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListScenarioRuns(ctx, store.RunFilter{
			Type:       model.ScenarioType(typ),
			ConfigHash: hash,
			Limit:      limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full result of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadRunResult(cmd, args[0])
		if err != nil {
			return err
		}
		return writeIndentedJSON(os.Stdout, res)
	},
}

// -- runs export --

var runsExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write a run as a ZIP of CSV tables",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := loadRunResult(cmd, args[0])
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("output")
		if path == "" {
			path = args[0] + ".zip"
		}
		out, err := openOutput(path)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		return export.WriteBundle(out, res)
	},
}

func loadRunResult(cmd *cobra.Command, id string) (*scenario.Result, error) {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}

	run, err := st.GetScenarioRun(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "load run")
	}
	var res scenario.Result
	if err := json.Unmarshal(run.Result, &res); err != nil {
		return nil, eris.Wrapf(err, "decode run %s", id)
	}
	return &res, nil
}

func init() {
	runsListCmd.Flags().String("type", "", "filter by scenario type (s1, s2, s3, s4)")
	runsListCmd.Flags().String("config-hash", "", "filter by settings hash")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsExportCmd.Flags().StringP("output", "o", "", "output path (default <run-id>.zip)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsExportCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.ScenarioRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tSEED\tSUPPLIERS\tFAILURES\tCONFIG\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t---------\t--------\t------\t-------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			r.Type,
			r.Seed,
			r.Suppliers,
			r.Failures,
			truncateID(r.ConfigHash),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an ID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
