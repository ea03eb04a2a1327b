package optimizations

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestFirstStepMovesByLearningRate(t *testing.T) {
	// With bias correction the first Adam step is lr * g/(|g|+eps) ~ lr*sign(g).
	p := mat.NewDense(1, 3, []float64{1, 2, 3})
	g := mat.NewDense(1, 3, []float64{0.5, -2, 0})
	a := NewAdam(0.1, 0.9, 0.999, 1e-8, 0)
	a.Step([]Param{{Name: "w", Value: p, Grad: g}})

	assert.InDelta(t, 0.9, p.At(0, 0), 1e-6)
	assert.InDelta(t, 2.1, p.At(0, 1), 1e-6)
	assert.InDelta(t, 3.0, p.At(0, 2), 1e-12)
	assert.Equal(t, 1, a.Steps())
}

func TestMatchesHandComputedSecondStep(t *testing.T) {
	lr, b1, b2, eps := 0.01, 0.9, 0.999, 1e-8
	p := mat.NewDense(1, 1, []float64{0.3})
	g := mat.NewDense(1, 1, nil)
	a := NewAdam(lr, b1, b2, eps, 0)

	want := 0.3
	m, v := 0.0, 0.0
	for step, grad := range []float64{0.2, -0.4} {
		g.Set(0, 0, grad)
		a.Step([]Param{{Name: "w", Value: p, Grad: g}})

		tt := float64(step + 1)
		m = b1*m + (1-b1)*grad
		v = b2*v + (1-b2)*grad*grad
		want -= lr * (m / (1 - math.Pow(b1, tt))) / (math.Sqrt(v/(1-math.Pow(b2, tt))) + eps)
	}
	assert.InDelta(t, want, p.At(0, 0), 1e-12)
}

func TestWeightDecayOnlyWhenRequested(t *testing.T) {
	w := mat.NewDense(1, 1, []float64{1})
	b := mat.NewDense(1, 1, []float64{1})
	zero := mat.NewDense(1, 1, nil)
	a := NewAdam(0.1, 0.9, 0.999, 1e-8, 0.5)
	a.Step([]Param{
		{Name: "w", Value: w, Grad: zero, Decay: true},
		{Name: "b", Value: b, Grad: zero},
	})
	assert.InDelta(t, 0.95, w.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, b.At(0, 0), 1e-12)
}

func TestShapeMismatchPanics(t *testing.T) {
	p := mat.NewDense(2, 2, nil)
	require.Panics(t, func() {
		AdamUpdateInPlace(p, mat.NewDense(2, 1, nil), mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil),
			1, 0.1, 0.9, 0.999, 1e-8, 0)
	})
}
