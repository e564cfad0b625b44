package stats

import (
	"cmp"
	"math"
	"slices"
)

// KNNImpute fills NaN cells of rows using the mean of the k nearest rows
// that have the column observed. Distance is Euclidean over the columns
// both rows observe, excluding the column being filled. Rows that share no
// observed column are never neighbors; when no neighbor exists the column
// mean is used, and a column with no observations stays NaN. The input is
// not modified.
func KNNImpute(rows [][]float64, k int) [][]float64 {
	if k < 1 {
		k = 1
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = slices.Clone(row)
	}

	type neighbor struct {
		idx  int
		dist float64
	}

	for i, row := range rows {
		for col, v := range row {
			if !math.IsNaN(v) {
				continue
			}

			var candidates []neighbor
			for j, other := range rows {
				if j == i || col >= len(other) || math.IsNaN(other[col]) {
					continue
				}
				d, ok := distance(row, other, col)
				if !ok {
					continue
				}
				candidates = append(candidates, neighbor{idx: j, dist: d})
			}

			if len(candidates) == 0 {
				out[i][col] = columnMean(rows, col)
				continue
			}
			slices.SortStableFunc(candidates, func(a, b neighbor) int {
				return cmp.Compare(a.dist, b.dist)
			})
			if len(candidates) > k {
				candidates = candidates[:k]
			}
			var sum float64
			for _, c := range candidates {
				sum += rows[c.idx][col]
			}
			out[i][col] = sum / float64(len(candidates))
		}
	}
	return out
}

func distance(a, b []float64, skip int) (float64, bool) {
	var sum float64
	var shared int
	n := min(len(a), len(b))
	for c := 0; c < n; c++ {
		if c == skip || math.IsNaN(a[c]) || math.IsNaN(b[c]) {
			continue
		}
		d := a[c] - b[c]
		sum += d * d
		shared++
	}
	if shared == 0 {
		return 0, false
	}
	return math.Sqrt(sum), true
}

func columnMean(rows [][]float64, col int) float64 {
	var sum float64
	var n int
	for _, r := range rows {
		if col < len(r) && !math.IsNaN(r[col]) {
			sum += r[col]
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
