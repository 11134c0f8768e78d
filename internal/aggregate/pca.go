package aggregate

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// principalScores projects each mean-centered row onto the first principal
// component of the matrix. Fewer than two rows, or a factorization failure,
// yields all zeros.
func principalScores(data *mat.Dense) []float64 {
	n, d := data.Dims()
	scores := make([]float64, n)
	if n < 2 {
		return scores
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(data, nil); !ok {
		return scores
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	means := make([]float64, d)
	for j := range means {
		means[j] = stat.Mean(mat.Col(nil, j, data), nil)
	}
	for i := 0; i < n; i++ {
		var s float64
		for j := 0; j < d; j++ {
			s += (data.At(i, j) - means[j]) * vecs.At(j, 0)
		}
		scores[i] = s
	}
	return scores
}

// minMaxNormalize rescales v into [0, 100]. A constant vector maps to zeros.
func minMaxNormalize(v []float64) []float64 {
	out := make([]float64, len(v))
	if len(v) == 0 {
		return out
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	if hi-lo <= degenerateRange {
		return out
	}
	for i, x := range v {
		out[i] = 100 * (x - lo) / (hi - lo)
	}
	return out
}
