// Package stats holds the ranking and error statistics used by scenario
// analysis.
package stats

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/esg-scorer/internal/model"
)

// KendallTau returns tau-a between two orderings of ids, computed over the
// ids present in both. Fewer than two common ids yields 1.
func KendallTau(a, b []string) float64 {
	posB := make(map[string]int, len(b))
	for i, id := range b {
		posB[id] = i
	}

	// positions in b, in a's order
	var seq []int
	seen := make(map[string]bool, len(a))
	for _, id := range a {
		if seen[id] {
			continue
		}
		seen[id] = true
		if p, ok := posB[id]; ok {
			seq = append(seq, p)
		}
	}

	n := len(seq)
	if n < 2 {
		return 1
	}
	var concordant, discordant int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case seq[j] > seq[i]:
				concordant++
			case seq[j] < seq[i]:
				discordant++
			}
		}
	}
	pairs := n * (n - 1) / 2
	return float64(concordant-discordant) / float64(pairs)
}

// MeanAbsoluteError returns the mean of |a[i]-b[i]|. Empty input yields 0.
func MeanAbsoluteError(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, eris.Errorf("stats: length mismatch %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum / float64(len(a)), nil
}

// MeanAbsolutePercentageError returns the mean of |actual-predicted|/|actual|
// as a percentage. Pairs with a zero actual are skipped.
func MeanAbsolutePercentageError(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, eris.Errorf("stats: length mismatch %d != %d", len(actual), len(predicted))
	}
	var sum float64
	var n int
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n) * 100, nil
}

// RankShiftStats summarizes how far suppliers moved between two rankings.
type RankShiftStats struct {
	Mean   float64        `json:"mean"`
	Max    int            `json:"max"`
	Shifts map[string]int `json:"shifts"`
}

// RankShifts compares ranks of the ids present in both rankings. A positive
// shift means the supplier moved up.
func RankShifts(baseline, updated []model.Ranking) RankShiftStats {
	after := make(map[string]int, len(updated))
	for _, r := range updated {
		after[r.ID] = r.Rank
	}

	out := RankShiftStats{Shifts: make(map[string]int)}
	var total int
	for _, r := range baseline {
		rank, ok := after[r.ID]
		if !ok {
			continue
		}
		shift := r.Rank - rank
		out.Shifts[r.ID] = shift
		abs := shift
		if abs < 0 {
			abs = -abs
		}
		total += abs
		if abs > out.Max {
			out.Max = abs
		}
	}
	if len(out.Shifts) > 0 {
		out.Mean = float64(total) / float64(len(out.Shifts))
	}
	return out
}

// DisparityResult describes how far group means sit from the overall mean.
type DisparityResult struct {
	D           float64            `json:"d"`
	MaxGap      float64            `json:"max_gap"`
	OverallMean float64            `json:"overall_mean"`
	GroupMeans  map[string]float64 `json:"group_means"`
}

// Disparity computes D, the mean over groups of |group mean - overall mean|,
// and MaxGap, the spread between the highest and lowest group mean. Empty
// groups are ignored.
func Disparity(groups map[string][]float64) DisparityResult {
	out := DisparityResult{GroupMeans: make(map[string]float64)}

	var all []float64
	for name, vals := range groups {
		if len(vals) == 0 {
			continue
		}
		out.GroupMeans[name] = Mean(vals)
		all = append(all, vals...)
	}
	if len(out.GroupMeans) == 0 {
		return out
	}
	out.OverallMean = Mean(all)

	lo, hi := math.Inf(1), math.Inf(-1)
	var sum float64
	for _, m := range out.GroupMeans {
		sum += math.Abs(m - out.OverallMean)
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	out.D = sum / float64(len(out.GroupMeans))
	out.MaxGap = hi - lo
	return out
}

// RankDisparity groups ranks by industry and computes Disparity over them.
func RankDisparity(rankings []model.Ranking, industryOf map[string]string) DisparityResult {
	groups := make(map[string][]float64)
	for _, r := range rankings {
		ind := industryOf[r.ID]
		groups[ind] = append(groups[ind], float64(r.Rank))
	}
	return Disparity(groups)
}

// TopKPreservation returns the percentage of the first k ids of original
// that are also among the first k ids of updated. An empty original yields
// 100.
func TopKPreservation(original, updated []string, k int) float64 {
	origTop := head(original, k)
	if len(origTop) == 0 {
		return 100
	}
	newTop := make(map[string]bool, k)
	for _, id := range head(updated, k) {
		newTop[id] = true
	}
	var kept int
	for _, id := range origTop {
		if newTop[id] {
			kept++
		}
	}
	return float64(kept) / float64(len(origTop)) * 100
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func head(ids []string, k int) []string {
	if k < 0 {
		k = 0
	}
	if len(ids) > k {
		return ids[:k]
	}
	return ids
}
