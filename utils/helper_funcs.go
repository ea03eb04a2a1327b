package utils

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RandomArray returns size samples from U(-1/sqrt(v), 1/sqrt(v)).
func RandomArray(rng *rand.Rand, size int, v float64) []float64 {
	min := -1.0 / math.Sqrt(v+1e-12)
	max := 1.0 / math.Sqrt(v+1e-12)
	out := make([]float64, size)
	for i := 0; i < size; i++ {
		out[i] = min + (max-min)*rng.Float64()
	}
	return out
}

// DropoutMask draws an inverted-dropout mask: each entry is 0 with
// probability p, otherwise 1/(1-p).
func DropoutMask(rng *rand.Rand, n int, p float64) []float64 {
	out := make([]float64, n)
	if p <= 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	keep := 1.0 / (1.0 - p)
	for i := range out {
		if rng.Float64() >= p {
			out[i] = keep
		}
	}
	return out
}

func ZerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}

// Zero clears a in place.
func Zero(a *mat.Dense) {
	raw := a.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j := range row {
			row[j] = 0
		}
	}
}

// MatrixNorm is the Frobenius norm.
func MatrixNorm(m mat.Matrix) float64 {
	return mat.Norm(m, 2)
}

// ClipGrads scales all grads so their combined norm <= maxNorm.
// Returns the scale actually applied (<=1.0) or 1.0 if no clip.
func ClipGrads(maxNorm float64, grads ...*mat.Dense) float64 {
	if maxNorm <= 0 {
		return 1.0
	}
	sum := 0.0
	for _, g := range grads {
		if g == nil {
			continue
		}
		n := MatrixNorm(g)
		sum += n * n
	}
	gn := math.Sqrt(sum)
	if gn <= maxNorm || gn == 0 {
		return 1.0
	}
	s := maxNorm / gn
	for _, g := range grads {
		if g != nil {
			g.Scale(s, g)
		}
	}
	return s
}

// ArgmaxRows returns the column index of the largest entry of every row.
// Ties resolve to the lowest index.
func ArgmaxRows(m mat.Matrix) []int {
	r, c := m.Dims()
	out := make([]int, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		out[i] = floats.MaxIdx(row)
	}
	return out
}
