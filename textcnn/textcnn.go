package textcnn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/IO"
	"github.com/manningwu07/textcnn/optimizations"
	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/utils"
)

// Config fixes the architecture. Every field is required.
type Config struct {
	VocabSize   int
	EmbedDim    int
	DimChannel  int   // feature maps per window size
	KernelWins  []int // window sizes in tokens, one convolution each
	DropoutRate float64
	NumClass    int
}

func (c Config) Validate() error {
	if c.VocabSize <= IO.UnkID {
		return params.ConfigErrorf("textcnn: vocab size %d leaves no room for pad/unk", c.VocabSize)
	}
	if c.EmbedDim <= 0 || c.DimChannel <= 0 {
		return params.ConfigErrorf("textcnn: embed dim %d and channels %d must be > 0", c.EmbedDim, c.DimChannel)
	}
	if c.NumClass < 2 {
		return params.ConfigErrorf("textcnn: need at least 2 classes, got %d", c.NumClass)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return params.ConfigErrorf("textcnn: dropout %g outside [0,1)", c.DropoutRate)
	}
	if len(c.KernelWins) == 0 {
		return params.ConfigErrorf("textcnn: no kernel windows")
	}
	seen := map[int]bool{}
	for _, w := range c.KernelWins {
		if w <= 0 {
			return params.ConfigErrorf("textcnn: window %d must be > 0", w)
		}
		if seen[w] {
			return params.ConfigErrorf("textcnn: duplicate window %d", w)
		}
		seen[w] = true
	}
	return nil
}

// MaxWindow is the shortest sequence every convolution can cover.
func (c Config) MaxWindow() int {
	m := 0
	for _, w := range c.KernelWins {
		m = max(m, w)
	}
	return m
}

// Features is the width of the pooled, concatenated feature vector.
func (c Config) Features() int { return len(c.KernelWins) * c.DimChannel }

// Conv is one window size: DimChannel filters spanning Window tokens.
type Conv struct {
	Window int
	W      *mat.Dense // (C x Window*dim), token j of the window occupies cols [j*dim, (j+1)*dim)
	B      *mat.Dense // (C x 1)
}

// TextCNN is embedding -> parallel convolutions -> max-over-time pooling ->
// concat -> dropout -> linear.
type TextCNN struct {
	Cfg    Config
	Embed  *mat.Dense // (dim x |V|), one column per token
	Convs  []*Conv
	FcW    *mat.Dense // (numClass x features)
	FcB    *mat.Dense // (numClass x 1)
	Device params.Device

	rng   *rand.Rand
	grads *gradBuffers
}

// New builds a model. embedding must be (EmbedDim x VocabSize) and is
// copied; nil draws a uniform random table. Kernels and the linear layer
// are drawn from U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
func New(cfg Config, embedding *mat.Dense, dev params.Device, rng *rand.Rand) (*TextCNN, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, params.ConfigErrorf("textcnn: random source is required")
	}
	if dev.Workers <= 0 {
		dev.Workers = 1
	}
	m := &TextCNN{Cfg: cfg, Device: dev, rng: rng}

	if embedding != nil {
		r, c := embedding.Dims()
		if r != cfg.EmbedDim || c != cfg.VocabSize {
			return nil, params.ConfigErrorf("textcnn: embedding is (%d x %d), want (%d x %d)", r, c, cfg.EmbedDim, cfg.VocabSize)
		}
		m.Embed = mat.DenseCopyOf(embedding)
	} else {
		m.Embed = mat.NewDense(cfg.EmbedDim, cfg.VocabSize, utils.RandomArray(rng, cfg.EmbedDim*cfg.VocabSize, float64(cfg.EmbedDim)))
	}

	for _, w := range cfg.KernelWins {
		fanIn := w * cfg.EmbedDim
		m.Convs = append(m.Convs, &Conv{
			Window: w,
			W:      mat.NewDense(cfg.DimChannel, fanIn, utils.RandomArray(rng, cfg.DimChannel*fanIn, float64(fanIn))),
			B:      mat.NewDense(cfg.DimChannel, 1, utils.RandomArray(rng, cfg.DimChannel, float64(fanIn))),
		})
	}
	f := cfg.Features()
	m.FcW = mat.NewDense(cfg.NumClass, f, utils.RandomArray(rng, cfg.NumClass*f, float64(f)))
	m.FcB = mat.NewDense(cfg.NumClass, 1, utils.RandomArray(rng, cfg.NumClass, float64(f)))
	m.grads = newGradBuffers(m)
	return m, nil
}

// exampleCache is what backward needs from one example's forward pass.
type exampleCache struct {
	ids    []int
	argmax [][]int   // per conv, per channel: window start of the max
	hidden []float64 // pooled features after dropout
	mask   []float64 // dropout mask, nil in eval
	logits []float64
}

func (m *TextCNN) forwardExample(ids []int, mask []float64) *exampleCache {
	if mw := m.Cfg.MaxWindow(); len(ids) < mw {
		ids = IO.PadSequences([][]int{ids}, mw)[0]
	}
	for _, id := range ids {
		if id < 0 || id >= m.Cfg.VocabSize {
			panic(fmt.Sprintf("textcnn: token index %d outside [0,%d)", id, m.Cfg.VocabSize))
		}
	}
	dim, C := m.Cfg.EmbedDim, m.Cfg.DimChannel
	T := len(ids)
	x := IO.EmbedSequence(m.Embed, ids) // (dim x T)

	ec := &exampleCache{ids: ids, mask: mask, argmax: make([][]int, len(m.Convs))}
	feat := make([]float64, 0, m.Cfg.Features())
	var tmp mat.Dense
	for k, conv := range m.Convs {
		L := T - conv.Window + 1
		z := mat.NewDense(C, L, nil)
		// z = sum_j W[:, j-th token block] * x[:, j : j+L]
		for j := 0; j < conv.Window; j++ {
			wj := conv.W.Slice(0, C, j*dim, (j+1)*dim)
			xj := x.Slice(0, dim, j, j+L)
			tmp.Reset()
			tmp.Mul(wj, xj)
			z.Add(z, &tmp)
		}
		vals, idx := utils.RowMax(z)
		for c := range vals {
			vals[c] += conv.B.At(c, 0)
		}
		ec.argmax[k] = idx
		feat = append(feat, vals...)
	}

	if mask != nil {
		for i := range feat {
			feat[i] *= mask[i]
		}
	}
	ec.hidden = feat

	K := m.Cfg.NumClass
	ec.logits = make([]float64, K)
	h := mat.NewVecDense(len(feat), feat)
	out := mat.NewVecDense(K, ec.logits)
	out.MulVec(m.FcW, h)
	for k := 0; k < K; k++ {
		ec.logits[k] += m.FcB.At(k, 0)
	}
	return ec
}

// Forward returns (B x numClass) raw logits. Dropout is applied only when
// train is set.
func (m *TextCNN) Forward(tokens [][]int, train bool) *mat.Dense {
	return logitsOf(m.forwardBatch(tokens, m.drawMasks(len(tokens), train)))
}

func (m *TextCNN) drawMasks(n int, train bool) [][]float64 {
	if !train || m.Cfg.DropoutRate == 0 {
		return nil
	}
	masks := make([][]float64, n)
	for i := range masks {
		masks[i] = utils.DropoutMask(m.rng, m.Cfg.Features(), m.Cfg.DropoutRate)
	}
	return masks
}

func logitsOf(caches []*exampleCache) *mat.Dense {
	if len(caches) == 0 {
		return nil
	}
	out := mat.NewDense(len(caches), len(caches[0].logits), nil)
	for i, ec := range caches {
		out.SetRow(i, ec.logits)
	}
	return out
}

// Predict returns the arg-max class of every row, dropout off.
func (m *TextCNN) Predict(tokens [][]int) []int {
	return utils.ArgmaxRows(m.Forward(tokens, false))
}

// Step runs forward with dropout, mean cross-entropy, backward and one
// optimizer update. It returns the batch loss and the predicted classes.
func (m *TextCNN) Step(tokens [][]int, labels []int, opt *optimizations.Adam, gradClip float64) (float64, []int) {
	loss, logits := m.lossAndGrads(tokens, labels, m.drawMasks(len(tokens), true))
	if gradClip > 0 {
		utils.ClipGrads(gradClip, m.grads.all()...)
	}
	opt.Step(m.Params())
	return loss, utils.ArgmaxRows(logits)
}

// Evaluate returns the mean loss and predictions without touching the
// parameters.
func (m *TextCNN) Evaluate(tokens [][]int, labels []int) (float64, []int) {
	logits := m.Forward(tokens, false)
	loss, _ := utils.CrossEntropyRows(logits, labels)
	return loss, utils.ArgmaxRows(logits)
}

// Params pairs every trainable tensor with its gradient buffer.
func (m *TextCNN) Params() []optimizations.Param {
	g := m.grads
	ps := []optimizations.Param{{Name: "embed", Value: m.Embed, Grad: g.embed}}
	for k, conv := range m.Convs {
		ps = append(ps,
			optimizations.Param{Name: fmt.Sprintf("convs.%d.weight", k), Value: conv.W, Grad: g.convW[k], Decay: true},
			optimizations.Param{Name: fmt.Sprintf("convs.%d.bias", k), Value: conv.B, Grad: g.convB[k]},
		)
	}
	return append(ps,
		optimizations.Param{Name: "fc.weight", Value: m.FcW, Grad: g.fcW, Decay: true},
		optimizations.Param{Name: "fc.bias", Value: m.FcB, Grad: g.fcB},
	)
}
