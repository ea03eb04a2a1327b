package textcnn

import (
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/utils"
)

// gradBuffers holds one gradient per parameter, reused across steps.
type gradBuffers struct {
	embed    *mat.Dense
	convW    []*mat.Dense
	convB    []*mat.Dense
	fcW, fcB *mat.Dense
}

func newGradBuffers(m *TextCNN) *gradBuffers {
	g := &gradBuffers{
		embed: utils.ZerosLike(m.Embed),
		fcW:   utils.ZerosLike(m.FcW),
		fcB:   utils.ZerosLike(m.FcB),
	}
	for _, conv := range m.Convs {
		g.convW = append(g.convW, utils.ZerosLike(conv.W))
		g.convB = append(g.convB, utils.ZerosLike(conv.B))
	}
	return g
}

func (g *gradBuffers) all() []*mat.Dense {
	out := []*mat.Dense{g.embed, g.fcW, g.fcB}
	out = append(out, g.convW...)
	return append(out, g.convB...)
}

func (g *gradBuffers) zero() {
	for _, d := range g.all() {
		utils.Zero(d)
	}
}

// lossAndGrads runs the forward pass with the given dropout masks and fills
// the gradient buffers with d(mean loss)/d(param). Only the forward pass
// fans out; backward runs on this goroutine in batch order so the result
// does not depend on worker scheduling.
func (m *TextCNN) lossAndGrads(tokens [][]int, labels []int, masks [][]float64) (float64, *mat.Dense) {
	caches := m.forwardBatch(tokens, masks)
	logits := logitsOf(caches)
	loss, dLogits := utils.CrossEntropyRows(logits, labels)

	m.grads.zero()
	for i, ec := range caches {
		m.backwardExample(ec, dLogits.RawRowView(i))
	}
	return loss, logits
}

// backwardExample accumulates one example's contribution. Only the window
// that won the max-pool for a channel receives gradient.
func (m *TextCNN) backwardExample(ec *exampleCache, dLogit []float64) {
	g := m.grads
	K, F := m.Cfg.NumClass, m.Cfg.Features()
	dim, C := m.Cfg.EmbedDim, m.Cfg.DimChannel

	// linear layer
	dHidden := make([]float64, F)
	for k := 0; k < K; k++ {
		d := dLogit[k]
		if d == 0 {
			continue
		}
		g.fcB.Set(k, 0, g.fcB.At(k, 0)+d)
		gRow, wRow := g.fcW.RawRowView(k), m.FcW.RawRowView(k)
		for f := 0; f < F; f++ {
			gRow[f] += d * ec.hidden[f]
			dHidden[f] += d * wRow[f]
		}
	}

	// dropout
	if ec.mask != nil {
		for f := range dHidden {
			dHidden[f] *= ec.mask[f]
		}
	}

	// max-pool -> conv -> embedding
	for k, conv := range m.Convs {
		dW, dB := g.convW[k], g.convB[k]
		for c := 0; c < C; c++ {
			d := dHidden[k*C+c]
			if d == 0 {
				continue
			}
			dB.Set(c, 0, dB.At(c, 0)+d)
			t0 := ec.argmax[k][c]
			gRow, wRow := dW.RawRowView(c), conv.W.RawRowView(c)
			for j := 0; j < conv.Window; j++ {
				tok := ec.ids[t0+j]
				off := j * dim
				for i := 0; i < dim; i++ {
					gRow[off+i] += d * m.Embed.At(i, tok)
					g.embed.Set(i, tok, g.embed.At(i, tok)+d*wRow[off+i])
				}
			}
		}
	}
}
