package scorer

import (
	"cmp"
	"slices"

	"github.com/sells-group/esg-scorer/internal/model"
)

// Rank orders entries by descending score and assigns 1-based ranks. Ties
// keep their input order. The input slice is not modified.
func Rank(entries []model.Ranking) []model.Ranking {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b model.Ranking) int {
		return cmp.Compare(b.Score, a.Score)
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
