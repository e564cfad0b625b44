package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/esg-scorer/internal/bands"
	"github.com/sells-group/esg-scorer/internal/dataset"
	"github.com/sells-group/esg-scorer/internal/export"
	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
	"github.com/sells-group/esg-scorer/internal/store"
)

var (
	scenarioInput     string
	scenarioFromStore bool
	scenarioFormat    string
	scenarioOutput    string
	scenarioSave      bool
)

// scenarioAliases maps long names onto scenario types.
var scenarioAliases = map[string]model.ScenarioType{
	"utility":     model.ScenarioUtility,
	"sensitivity": model.ScenarioSensitivity,
	"missingness": model.ScenarioMissingness,
	"ablation":    model.ScenarioAblation,
}

// parseScenarioType accepts s1..s4 or the long scenario names.
func parseScenarioType(arg string) (model.ScenarioType, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if t, ok := scenarioAliases[arg]; ok {
		return t, nil
	}
	t := model.ScenarioType(arg)
	if !t.Valid() {
		return "", eris.Errorf("unknown scenario %q (want s1-s4 or utility, sensitivity, missingness, ablation)", arg)
	}
	return t, nil
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario <s1|s2|s3|s4>",
	Short: "Run a what-if scenario over a supplier set",
	Long: `Runs one scenario against the baseline ranking:
  s1 utility      keep suppliers above a score threshold
  s2 sensitivity  perturb final scores and measure rank stability
  s3 missingness  blank metrics at random, impute, and measure drift
  s4 ablation     toggle industry bands and measure disparity`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		typ, err := parseScenarioType(args[0])
		if err != nil {
			return err
		}
		if err := checkFormat(scenarioFormat, formatCSV, formatZip, formatJSON); err != nil {
			return err
		}
		if scenarioInput == "" && !scenarioFromStore {
			return eris.New("one of --input or --from-store is required")
		}

		params, err := scenarioParams(cmd)
		if err != nil {
			return err
		}

		var suppliers []model.Supplier
		if scenarioInput != "" {
			suppliers, err = dataset.LoadSuppliers(ctx, scenarioInput)
			if err != nil {
				return eris.Wrap(err, "load suppliers")
			}
		}

		env, err := initEnv(ctx, "scenario", suppliers, scenarioFromStore || scenarioSave)
		if err != nil {
			return err
		}
		defer env.Close()

		if scenarioFromStore {
			suppliers, err = env.Store.ListSuppliers(ctx, store.SupplierFilter{Limit: 1000000})
			if err != nil {
				return eris.Wrap(err, "load stored suppliers")
			}
			if cfg.Bands.DocumentPath == "" && cfg.Bands.ReferencePath == "" {
				env.Bands = bands.Build(suppliers)
				env.Runner = scenario.NewRunner(cfg.Scoring, env.Bands, cfg.Batch.Concurrency)
			}
		}

		res, err := env.Runner.Run(ctx, typ, suppliers, params)
		if err != nil {
			return err
		}

		if scenarioSave {
			run, err := scenarioRunRecord(res, len(suppliers))
			if err != nil {
				return err
			}
			if err := env.Store.SaveScenarioRun(ctx, run); err != nil {
				return eris.Wrap(err, "save scenario run")
			}
			zap.L().Info("scenario run saved", zap.String("run_id", run.ID))
		}

		out, err := openOutput(scenarioOutput)
		if err != nil {
			return err
		}
		defer out.Close() //nolint:errcheck

		switch scenarioFormat {
		case formatZip:
			err = export.WriteBundle(out, res)
		case formatJSON:
			err = writeIndentedJSON(out, res)
		default:
			for i, t := range export.Tables(res) {
				if i > 0 {
					_, _ = fmt.Fprintln(out)
				}
				if err = export.WriteTable(out, t, res.Baseline); err != nil {
					break
				}
			}
		}
		if err != nil {
			return eris.Wrap(err, "write scenario output")
		}
		return nil
	},
}

// scenarioParams layers changed flags over the configured defaults.
func scenarioParams(cmd *cobra.Command) (scenario.Params, error) {
	p := scenarioDefaults()
	f := cmd.Flags()

	if f.Changed("seed") {
		p.Seed, _ = f.GetUint64("seed")
	}
	if f.Changed("min-score") {
		v, _ := f.GetFloat64("min-score")
		p.MinScore = &v
	}
	if f.Changed("margin-percent") {
		v, _ := f.GetFloat64("margin-percent")
		p.MarginPercent = &v
	}
	if f.Changed("perturbations") {
		p.Perturbations, _ = f.GetFloat64Slice("perturbations")
	}
	if f.Changed("missing-rate") {
		p.MissingRate, _ = f.GetFloat64("missing-rate")
	}
	if f.Changed("imputation") {
		p.Imputation, _ = f.GetString("imputation")
	}
	if f.Changed("k") {
		p.K, _ = f.GetInt("k")
	}
	if f.Changed("top-k") {
		p.TopK, _ = f.GetInt("top-k")
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func scenarioRunRecord(res *scenario.Result, suppliers int) (*model.ScenarioRun, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, eris.Wrap(err, "encode scenario result")
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

func init() {
	f := scenarioCmd.Flags()
	f.StringVar(&scenarioInput, "input", "", "supplier file (.csv, .xlsx or .json)")
	f.BoolVar(&scenarioFromStore, "from-store", false, "use suppliers saved in the store")
	f.StringVar(&scenarioFormat, "format", formatCSV, "output format: csv, zip or json")
	f.StringVarP(&scenarioOutput, "output", "o", "", "output path (default stdout)")
	f.BoolVar(&scenarioSave, "save", false, "persist the scenario run to the store")

	addScenarioParamFlags(scenarioCmd)
	rootCmd.AddCommand(scenarioCmd)
}

// addScenarioParamFlags registers the flags read by scenarioParams.
func addScenarioParamFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Uint64("seed", 42, "random seed for s3")
	f.Float64("min-score", 50, "s1 absolute score floor")
	f.Float64("margin-percent", 0, "s1 floor as a percentage of the best score (overrides --min-score)")
	f.Float64Slice("perturbations", []float64{0.10, -0.10, 0.20, -0.20}, "s2 score perturbations as fractions")
	f.Float64("missing-rate", 0.2, "s3 fraction (or percent) of metric cells to blank")
	f.String("imputation", scenario.ImputeIndustryMean, "s3 imputation: industry_mean or knn")
	f.Int("k", 5, "s3 neighbours for knn imputation")
	f.Int("top-k", 3, "s3 top-k preservation cutoff")
}
