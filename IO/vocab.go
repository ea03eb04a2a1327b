package IO

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

const (
	PadToken = "<pad>"
	UnkToken = "<unk>"
	PadID    = 0
	UnkID    = 1
)

// Special tokens kept at the start of the vocab
var special = []string{PadToken, UnkToken}

// Vocabulary maps tokens seen in the training split to stable indices.
type Vocabulary struct {
	TokenToID map[string]int
	IDToToken []string
	Freqs     map[string]int
}

type VocabOptions struct {
	MaxSize int // 0 = no limit, specials not counted
	MinFreq int
}

// BuildVocab counts tokens over examples and assigns indices after the
// specials by descending frequency, ties broken lexicographically.
func BuildVocab(examples []Example, opts VocabOptions) Vocabulary {
	counts := make(map[string]int, 1<<12)
	for _, ex := range examples {
		for _, t := range ex.Tokens {
			counts[t]++
		}
	}
	return buildFixedVocabFromCounts(counts, opts)
}

func buildFixedVocabFromCounts(cnt map[string]int, opts VocabOptions) Vocabulary {
	type kv struct {
		k string
		v int
	}
	arr := make([]kv, 0, len(cnt))
	for k, v := range cnt {
		if k == PadToken || k == UnkToken || v < opts.MinFreq {
			continue
		}
		arr = append(arr, kv{k, v})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].v == arr[j].v {
			return arr[i].k < arr[j].k
		}
		return arr[i].v > arr[j].v
	})
	if opts.MaxSize > 0 && len(arr) > opts.MaxSize {
		arr = arr[:opts.MaxSize]
	}

	idToToken := append(make([]string, 0, len(special)+len(arr)), special...)
	for _, p := range arr {
		idToToken = append(idToToken, p.k)
	}
	tok2id := make(map[string]int, len(idToToken))
	for i, t := range idToToken {
		tok2id[t] = i
	}
	return Vocabulary{TokenToID: tok2id, IDToToken: idToToken, Freqs: cnt}
}

func (v Vocabulary) Size() int { return len(v.IDToToken) }

// Lookup returns the index of tok, or UnkID when tok was not seen in training.
func (v Vocabulary) Lookup(tok string) int {
	if id, ok := v.TokenToID[tok]; ok {
		return id
	}
	return UnkID
}

// Numericalize maps tokens to indices into a new slice.
func (v Vocabulary) Numericalize(tokens []string) []int {
	ids := make([]int, len(tokens))
	for i, t := range tokens {
		ids[i] = v.Lookup(t)
	}
	return ids
}

// ExportVocabJSON writes the index table so a checkpoint can be reused.
func ExportVocabJSON(path string, v Vocabulary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	data := map[string]any{
		"TokenToID": v.TokenToID,
		"IDToToken": v.IDToToken,
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ImportVocabJSON loads a vocabulary written by ExportVocabJSON.
func ImportVocabJSON(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocabulary{}, err
	}
	defer f.Close()
	var data struct {
		TokenToID map[string]int `json:"TokenToID"`
		IDToToken []string       `json:"IDToToken"`
	}
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return Vocabulary{}, err
	}
	if len(data.IDToToken) < len(special) || data.IDToToken[PadID] != PadToken || data.IDToToken[UnkID] != UnkToken {
		return Vocabulary{}, fmt.Errorf("vocab %s: missing special tokens", path)
	}
	return Vocabulary{TokenToID: data.TokenToID, IDToToken: data.IDToToken}, nil
}
