package utils

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestRowSoftmax(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 1000, 1000, 1000})
	p := RowSoftmax(m)
	for i := 0; i < 2; i++ {
		assert.InDelta(t, 1.0, floats.Sum(p.RawRowView(i)), 1e-12)
	}
	assert.InDelta(t, 1.0/3, p.At(1, 0), 1e-12)
	assert.Less(t, p.At(0, 0), p.At(0, 2))
}

func TestCrossEntropyRowsGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	logits := mat.NewDense(3, 4, RandomArray(rng, 12, 1))
	gold := []int{0, 3, 1}
	loss, grad := CrossEntropyRows(logits, gold)
	assert.GreaterOrEqual(t, loss, 0.0)

	eps := 1e-6
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			w := logits.At(i, j)
			logits.Set(i, j, w+eps)
			lp, _ := CrossEntropyRows(logits, gold)
			logits.Set(i, j, w-eps)
			lm, _ := CrossEntropyRows(logits, gold)
			logits.Set(i, j, w)
			assert.InDelta(t, (lp-lm)/(2*eps), grad.At(i, j), 1e-6, "[%d,%d]", i, j)
		}
	}
}

func TestCrossEntropyRowsKnownValue(t *testing.T) {
	loss, _ := CrossEntropyRows(mat.NewDense(1, 2, []float64{0, 0}), []int{1})
	assert.InDelta(t, math.Log(2), loss, 1e-12)

	// huge logits stay finite
	loss, _ = CrossEntropyRows(mat.NewDense(1, 2, []float64{1000, -1000}), []int{0})
	assert.InDelta(t, 0, loss, 1e-12)
}

func TestCrossEntropyRowsBadLabelPanics(t *testing.T) {
	require.Panics(t, func() { CrossEntropyRows(mat.NewDense(1, 2, nil), []int{2}) })
	require.Panics(t, func() { CrossEntropyRows(mat.NewDense(2, 2, nil), []int{0}) })
}

func TestRowMax(t *testing.T) {
	vals, idx := RowMax(mat.NewDense(2, 3, []float64{1, 5, 5, -3, -2, -9}))
	assert.Equal(t, []float64{5, -2}, vals)
	assert.Equal(t, []int{1, 1}, idx)
}

func TestArgmaxRows(t *testing.T) {
	assert.Equal(t, []int{2, 0}, ArgmaxRows(mat.NewDense(2, 3, []float64{0, 1, 2, 7, 7, 1})))
}

func TestClipGrads(t *testing.T) {
	a := mat.NewDense(1, 2, []float64{3, 0})
	b := mat.NewDense(1, 1, []float64{4})
	s := ClipGrads(1, a, b, nil)
	assert.InDelta(t, 0.2, s, 1e-12)
	assert.InDelta(t, 1.0, math.Hypot(MatrixNorm(a), MatrixNorm(b)), 1e-12)

	assert.Equal(t, 1.0, ClipGrads(10, a, b))
	assert.Equal(t, 1.0, ClipGrads(0, a, b))
}

func TestDropoutMask(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	m := DropoutMask(rng, 10000, 0.5)
	kept := 0
	for _, v := range m {
		require.True(t, v == 0 || v == 2, "mask value %v", v)
		if v != 0 {
			kept++
		}
	}
	assert.InDelta(t, 5000, kept, 300)
	assert.Equal(t, []float64{1, 1, 1}, DropoutMask(rng, 3, 0))
}

func TestZero(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	sub := m.Slice(0, 2, 1, 3).(*mat.Dense)
	Zero(sub)
	assert.Equal(t, []float64{1, 0, 0, 4, 0, 0}, m.RawMatrix().Data)
	assert.True(t, mat.Equal(ZerosLike(m), mat.NewDense(2, 3, nil)))
}
