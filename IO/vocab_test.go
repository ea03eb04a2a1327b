package IO

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func examplesOf(sentences ...[]string) []Example {
	out := make([]Example, len(sentences))
	for i, s := range sentences {
		out[i] = Example{Tokens: s, Label: "x"}
	}
	return out
}

func TestBuildVocabOrder(t *testing.T) {
	v := BuildVocab(examplesOf(
		[]string{"b", "a", "c", "a"},
		[]string{"c", "a", "d"},
	), VocabOptions{MinFreq: 1})

	assert.Equal(t, []string{PadToken, UnkToken, "a", "c", "b", "d"}, v.IDToToken)
	assert.Equal(t, PadID, v.TokenToID[PadToken])
	assert.Equal(t, UnkID, v.TokenToID[UnkToken])
	assert.Equal(t, 3, v.Freqs["a"])
}

func TestBuildVocabLimits(t *testing.T) {
	ex := examplesOf([]string{"a", "a", "a", "b", "b", "c"})
	assert.Equal(t, []string{PadToken, UnkToken, "a", "b"}, BuildVocab(ex, VocabOptions{MinFreq: 2}).IDToToken)
	assert.Equal(t, []string{PadToken, UnkToken, "a"}, BuildVocab(ex, VocabOptions{MaxSize: 1}).IDToToken)
}

func TestVocabIndicesUniqueAndStable(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	var ex []Example
	for i := 0; i < 50; i++ {
		var toks []string
		for j := 0; j < 20; j++ {
			toks = append(toks, fmt.Sprintf("w%d", rng.Intn(200)))
		}
		ex = append(ex, Example{Tokens: toks})
	}
	a := BuildVocab(ex, VocabOptions{})
	// same tokens in another order give the same table
	rev := append([]Example(nil), ex...)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	b := BuildVocab(rev, VocabOptions{})
	assert.Equal(t, a.IDToToken, b.IDToToken)

	require.Equal(t, len(a.IDToToken), len(a.TokenToID))
	for id, tok := range a.IDToToken {
		assert.Equal(t, id, a.TokenToID[tok])
	}
	for _, e := range ex {
		for _, tok := range e.Tokens {
			assert.NotEqual(t, UnkID, a.Lookup(tok))
		}
	}
}

func TestNumericalizeUnseen(t *testing.T) {
	v := BuildVocab(examplesOf([]string{"good", "film"}), VocabOptions{})
	toks := []string{"good", "bad", "film"}
	ids := v.Numericalize(toks)
	assert.Equal(t, []int{v.TokenToID["good"], UnkID, v.TokenToID["film"]}, ids)
	assert.Equal(t, []string{"good", "bad", "film"}, toks)
}

func TestVocabJSONRoundTrip(t *testing.T) {
	v := BuildVocab(examplesOf([]string{"good", "film", "good"}), VocabOptions{})
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, ExportVocabJSON(path, v))

	got, err := ImportVocabJSON(path)
	require.NoError(t, err)
	assert.Equal(t, v.IDToToken, got.IDToToken)
	assert.Equal(t, v.TokenToID, got.TokenToID)
	assert.Equal(t, UnkID, got.Lookup("unseen"))
}

func TestImportVocabRejectsMissingSpecials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	require.NoError(t, ExportVocabJSON(path, Vocabulary{
		TokenToID: map[string]int{"a": 0},
		IDToToken: []string{"a"},
	}))
	_, err := ImportVocabJSON(path)
	assert.Error(t, err)
}
