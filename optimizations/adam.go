package optimizations

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Param is a trainable tensor and the gradient accumulated for it.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
	Decay bool // apply weight decay (weights yes, biases no)
}

// Adam keeps first/second moment estimates per named parameter.
type Adam struct {
	LR, Beta1, Beta2, Eps, WeightDecay float64

	t    int
	m, v map[string]*mat.Dense
}

func NewAdam(lr, beta1, beta2, eps, weightDecay float64) *Adam {
	return &Adam{
		LR: lr, Beta1: beta1, Beta2: beta2, Eps: eps, WeightDecay: weightDecay,
		m: map[string]*mat.Dense{},
		v: map[string]*mat.Dense{},
	}
}

// Steps is the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }

// Step applies one bias-corrected update to every parameter.
func (a *Adam) Step(ps []Param) {
	a.t++
	for _, p := range ps {
		m, ok := a.m[p.Name]
		if !ok {
			m, a.v[p.Name] = zerosLike(p.Value), zerosLike(p.Value)
			a.m[p.Name] = m
		}
		wd := 0.0
		if p.Decay {
			wd = a.WeightDecay
		}
		AdamUpdateInPlace(p.Value, p.Grad, m, a.v[p.Name], a.t, a.LR, a.Beta1, a.Beta2, a.Eps, wd)
	}
}

// p -= lr * (mhat/(sqrt(vhat)+eps) + wd * p) with bias correction (AdamW).
func AdamUpdateInPlace(
	p, g, m, v *mat.Dense,
	t int,
	lr, beta1, beta2, eps, weightDecay float64,
) {
	pr, pc := p.Dims()
	for _, x := range []struct {
		name string
		d    *mat.Dense
	}{{"grad", g}, {"m", m}, {"v", v}} {
		if r, c := x.d.Dims(); r != pr || c != pc {
			panic(fmt.Sprintf("AdamUpdateInPlace: %s shape (%d x %d), param (%d x %d)", x.name, r, c, pr, pc))
		}
	}
	c1 := 1.0 / (1.0 - math.Pow(beta1, float64(t)))
	c2 := 1.0 / (1.0 - math.Pow(beta2, float64(t)))
	for i := 0; i < pr; i++ {
		pRow, gRow := p.RawRowView(i), g.RawRowView(i)
		mRow, vRow := m.RawRowView(i), v.RawRowView(i)
		for j := 0; j < pc; j++ {
			gij := gRow[j]
			mij := beta1*mRow[j] + (1.0-beta1)*gij
			vij := beta2*vRow[j] + (1.0-beta2)*gij*gij
			mhat := mij * c1
			vhat := vij * c2
			update := mhat/(math.Sqrt(vhat)+eps) + weightDecay*pRow[j]
			mRow[j], vRow[j] = mij, vij
			pRow[j] -= lr * update
		}
	}
}

func zerosLike(a *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	return mat.NewDense(r, c, nil)
}
