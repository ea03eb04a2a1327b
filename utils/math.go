package utils

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// RowMax returns, per row, the largest entry and its column (first on ties).
func RowMax(m *mat.Dense) (vals []float64, idx []int) {
	r, c := m.Dims()
	if c == 0 {
		panic("RowMax: matrix has no columns")
	}
	vals = make([]float64, r)
	idx = make([]int, r)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		j := floats.MaxIdx(row)
		vals[i], idx[i] = row[j], j
	}
	return vals, idx
}

// ---------- Softmax ----------

// RowSoftmax applies softmax independently to each row across columns.
func RowSoftmax(m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		mat.Row(row, i, m)
		// numerical stability
		mx := floats.Max(row)
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - mx)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
	return out
}

// ---------- Loss ----------

// CrossEntropyRows computes the mean cross-entropy of (B x K) logits against
// gold class indices, and its gradient with respect to the logits (already
// divided by B).
func CrossEntropyRows(logits *mat.Dense, gold []int) (float64, *mat.Dense) {
	b, k := logits.Dims()
	if len(gold) != b {
		panic(fmt.Sprintf("CrossEntropyRows: %d logits rows, %d labels", b, len(gold)))
	}
	prob := RowSoftmax(logits)
	loss := 0.0
	for i, g := range gold {
		if g < 0 || g >= k {
			panic(fmt.Sprintf("CrossEntropyRows: label %d outside [0,%d)", g, k))
		}
		loss -= logSoftmaxAt(logits.RawRowView(i), g)
		prob.Set(i, g, prob.At(i, g)-1.0)
	}
	prob.Scale(1/float64(b), prob)
	return loss / float64(b), prob
}

// logSoftmaxAt is log(softmax(row)[g]) computed with log-sum-exp.
func logSoftmaxAt(row []float64, g int) float64 {
	mx := floats.Max(row)
	sum := 0.0
	for _, v := range row {
		sum += math.Exp(v - mx)
	}
	return row[g] - mx - math.Log(sum)
}
