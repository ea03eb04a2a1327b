package textcnn

import (
	"github.com/sourcegraph/conc/pool"
)

// forwardBatch runs forwardExample for every row on at most Device.Workers
// goroutines. Parameters are only read; each worker writes its own cache
// slot, so no locking is needed.
func (m *TextCNN) forwardBatch(tokens [][]int, masks [][]float64) []*exampleCache {
	out := make([]*exampleCache, len(tokens))
	if m.Device.Workers <= 1 || len(tokens) == 1 {
		for i, ids := range tokens {
			out[i] = m.forwardExample(ids, maskAt(masks, i))
		}
		return out
	}
	p := pool.New().WithMaxGoroutines(m.Device.Workers)
	for i, ids := range tokens {
		p.Go(func() {
			out[i] = m.forwardExample(ids, maskAt(masks, i))
		})
	}
	p.Wait()
	return out
}

func maskAt(masks [][]float64, i int) []float64 {
	if masks == nil {
		return nil
	}
	return masks[i]
}
