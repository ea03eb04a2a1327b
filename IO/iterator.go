package IO

import (
	"iter"
	"math/rand"

	"github.com/manningwu07/textcnn/params"
)

// Batch is one padded mini-batch. Tokens is B rows of equal length.
type Batch struct {
	Tokens  [][]int
	Labels  []int
	Lengths []int // unpadded (post-truncation) lengths
	Device  params.Device
}

func (b *Batch) Size() int { return len(b.Tokens) }

type IteratorOptions struct {
	BatchSize int
	Shuffle   bool
	FixLength int // truncate rows longer than this; 0 keeps everything
	MinLength int // pad rows up to at least this (the widest conv window)
	Device    params.Device
	Rand      *rand.Rand // required when Shuffle is set
}

// Iterator yields batches over a split. Every call to Batches starts a new
// full pass; shuffled iterators draw a new order per pass.
type Iterator struct {
	examples []Example
	vocab    Vocabulary
	labels   Labels
	opts     IteratorOptions
}

func NewIterator(examples []Example, vocab Vocabulary, labels Labels, opts IteratorOptions) (*Iterator, error) {
	if opts.BatchSize <= 0 {
		return nil, params.ConfigErrorf("batch size must be > 0, got %d", opts.BatchSize)
	}
	if opts.Shuffle && opts.Rand == nil {
		return nil, params.ConfigErrorf("shuffling iterator needs a random source")
	}
	if opts.FixLength > 0 && opts.FixLength < opts.MinLength {
		return nil, params.ConfigErrorf("fix_length %d shorter than widest window %d", opts.FixLength, opts.MinLength)
	}
	return &Iterator{examples: examples, vocab: vocab, labels: labels, opts: opts}, nil
}

// Len is the number of examples in one pass.
func (it *Iterator) Len() int { return len(it.examples) }

// NumBatches is the number of batches in one pass.
func (it *Iterator) NumBatches() int {
	return (len(it.examples) + it.opts.BatchSize - 1) / it.opts.BatchSize
}

// Batches returns one pass over the split. A label outside the training
// labels stops the pass with an ErrData error.
func (it *Iterator) Batches() iter.Seq2[*Batch, error] {
	return func(yield func(*Batch, error) bool) {
		order := make([]int, len(it.examples))
		for i := range order {
			order[i] = i
		}
		if it.opts.Shuffle {
			it.opts.Rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}
		for start := 0; start < len(order); start += it.opts.BatchSize {
			end := min(start+it.opts.BatchSize, len(order))
			b, err := it.makeBatch(order[start:end])
			if !yield(b, err) || err != nil {
				return
			}
		}
	}
}

func (it *Iterator) makeBatch(idx []int) (*Batch, error) {
	rows := make([][]int, len(idx))
	labels := make([]string, len(idx))
	lengths := make([]int, len(idx))
	maxLen := it.opts.MinLength
	for i, k := range idx {
		ex := it.examples[k]
		toks := ex.Tokens
		if it.opts.FixLength > 0 && len(toks) > it.opts.FixLength {
			toks = toks[:it.opts.FixLength]
		}
		rows[i] = it.vocab.Numericalize(toks)
		labels[i] = ex.Label
		lengths[i] = len(toks)
		maxLen = max(maxLen, len(toks))
	}
	y, err := it.labels.EncodeAll(labels)
	if err != nil {
		return nil, err
	}
	return &Batch{
		Tokens:  PadSequences(rows, maxLen),
		Labels:  y,
		Lengths: lengths,
		Device:  it.opts.Device,
	}, nil
}

// PadSequences returns copies of rows right-padded with PadID to length n.
func PadSequences(rows [][]int, n int) [][]int {
	out := make([][]int, len(rows))
	for i, r := range rows {
		p := make([]int, n) // PadID == 0
		copy(p, r)
		out[i] = p
	}
	return out
}
