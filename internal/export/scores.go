package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/model"
	"github.com/sells-group/esg-scorer/internal/scorer"
)

var scoreColumns = []string{
	"supplier_id",
	"environmental_score",
	"social_score",
	"governance_score",
	"composite_score",
	"completeness_ratio",
	"risk_factor",
	"risk_penalty",
	"risk_level",
	"final_score",
	"disclosure_capped",
}

// WriteScores writes one row per result in the order given.
func WriteScores(w io.Writer, results []scorer.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(scoreColumns); err != nil {
		return eris.Wrap(err, "export: write score header")
	}
	for _, r := range results {
		row := []string{
			r.SupplierID,
			fixed(r.Environmental, tablePlaces),
			fixed(r.Social, tablePlaces),
			fixed(r.Governance, tablePlaces),
			fixed(r.Composite, tablePlaces),
			fixed(r.CompletenessRatio, tablePlaces),
			fixed(r.RiskFactor, tablePlaces),
			fixedPtr(r.RiskPenalty, tablePlaces),
			string(r.RiskLevel),
			fixed(r.FinalScore, tablePlaces),
			strconv.FormatBool(r.DisclosureCapped),
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write score %s", r.SupplierID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush scores")
}

var rankingColumns = []string{"rank", "supplier_id", "name", "score"}

// WriteRankings writes a ranking table.
func WriteRankings(w io.Writer, rankings []model.Ranking) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(rankingColumns); err != nil {
		return eris.Wrap(err, "export: write ranking header")
	}
	for _, r := range rankings {
		if err := cw.Write([]string{strconv.Itoa(r.Rank), r.ID, r.Name, fixed(r.Score, tablePlaces)}); err != nil {
			return eris.Wrapf(err, "export: write ranking %s", r.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush rankings")
}
