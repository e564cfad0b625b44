package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scenario"
)

// Objective is a named scalar reported above a scenario table.
type Objective struct {
	Name  string
	Value float64
}

// Table is one scenario variant ready for rendering.
type Table struct {
	Name       string
	Objectives []Objective
	Rankings   []model.Ranking
}

// Tables flattens a scenario result into one table per variant. The
// sensitivity scenario yields a table per perturbation.
func Tables(res *scenario.Result) []Table {
	if res == nil {
		return nil
	}
	var out []Table
	if u := res.Utility; u != nil {
		out = append(out, Table{
			Name: "s1_utility",
			Objectives: []Objective{
				{"threshold", u.Threshold},
				{"baseline_total", u.BaselineTotal},
				{"filtered_total", u.FilteredTotal},
				{"objective_delta_pct", u.ObjectiveDeltaPct},
				{"retained", float64(u.Retained)},
				{"total", float64(u.Total)},
			},
			Rankings: u.Rankings,
		})
	}
	for _, s := range res.Sensitivity {
		out = append(out, Table{
			Name: fmt.Sprintf("s2_sensitivity_%+d", int(math.Round(s.Perturbation*100))),
			Objectives: []Objective{
				{"perturbation", s.Perturbation},
				{"kendall_tau", s.KendallTau},
				{"mean_rank_shift", s.MeanRankShift},
				{"max_rank_shift", float64(s.MaxRankShift)},
			},
			Rankings: s.Rankings,
		})
	}
	if m := res.Missingness; m != nil {
		out = append(out, Table{
			Name: "s3_missingness",
			Objectives: []Objective{
				{"missing_rate", m.MissingRate},
				{"dropped", float64(m.Dropped)},
				{"top_k", float64(m.TopK)},
				{"top_k_preservation", m.TopKPreservation},
				{"mae", m.MAE},
			},
			Rankings: m.Rankings,
		})
	}
	if a := res.Ablation; a != nil {
		out = append(out, Table{
			Name: "s4_ablation",
			Objectives: []Objective{
				{"kendall_tau", a.KendallTau},
				{"disparity", a.Disparity.D},
				{"disparity_max_gap", a.Disparity.MaxGap},
				{"baseline_disparity", a.BaselineDisparity.D},
				{"baseline_disparity_max_gap", a.BaselineDisparity.MaxGap},
			},
			Rankings: a.Rankings,
		})
	}
	return out
}

var comparisonColumns = []string{"rank", "supplier_id", "name", "score", "baseline_rank", "baseline_score", "rank_shift"}

// WriteTable writes the objectives as "#name,value" comment lines followed
// by the variant ranking joined to the baseline. Suppliers missing from
// the baseline get empty baseline columns.
func WriteTable(w io.Writer, t Table, baseline []model.Ranking) error {
	cw := csv.NewWriter(w)
	for _, o := range t.Objectives {
		if err := cw.Write([]string{"#" + o.Name, fixed(o.Value, objectivePlaces)}); err != nil {
			return eris.Wrapf(err, "export: write objective %s", o.Name)
		}
	}
	if err := cw.Write(comparisonColumns); err != nil {
		return eris.Wrap(err, "export: write scenario header")
	}

	base := make(map[string]model.Ranking, len(baseline))
	for _, r := range baseline {
		base[r.ID] = r
	}
	for _, r := range t.Rankings {
		row := []string{strconv.Itoa(r.Rank), r.ID, r.Name, fixed(r.Score, tablePlaces), "", "", ""}
		if b, ok := base[r.ID]; ok {
			row[4] = strconv.Itoa(b.Rank)
			row[5] = fixed(b.Score, tablePlaces)
			row[6] = strconv.Itoa(b.Rank - r.Rank)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write scenario row %s", r.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush scenario table")
}

// WriteFailures writes the suppliers a run could not score.
func WriteFailures(w io.Writer, failures []scenario.Failure) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"supplier_id", "message"}); err != nil {
		return eris.Wrap(err, "export: write failures header")
	}
	for _, f := range failures {
		if err := cw.Write([]string{f.SupplierID, f.Message}); err != nil {
			return eris.Wrap(err, "export: write failure")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush failures")
}
