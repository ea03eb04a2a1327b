package IO

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/params"
)

const toyVectors = "good 0.1 0.2 0.3\nfilm -1 0 1\nunused 9 9 9\n"

func toyVocab() Vocabulary {
	return BuildVocab(examplesOf([]string{"good", "good", "film", "plot"}), VocabOptions{})
}

func writeVectors(t *testing.T, dir, file, body string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, file))
	require.NoError(t, err)
	defer f.Close()
	switch filepath.Ext(file) {
	case ".gz":
		w := gzip.NewWriter(f)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	case ".zst":
		w, err := zstd.NewWriter(f)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	default:
		_, err = f.WriteString(body)
		require.NoError(t, err)
	}
}

func TestLoadPretrainedFormats(t *testing.T) {
	v := toyVocab()
	for _, file := range []string{"toy.txt", "toy.txt.gz", "toy.txt.zst"} {
		t.Run(file, func(t *testing.T) {
			dir := t.TempDir()
			writeVectors(t, dir, file, toyVectors)

			emb, cov, err := LoadPretrained(v, EmbeddingOptions{Name: "toy", Dir: dir, Dim: 3, UnkInit: "zero"}, nil)
			require.NoError(t, err)
			r, c := emb.Dims()
			assert.Equal(t, 3, r)
			assert.Equal(t, v.Size(), c)
			assert.Equal(t, Coverage{Found: 2, Total: v.Size()}, cov)

			assert.Equal(t, []float64{0.1, 0.2, 0.3}, mat.Col(nil, v.Lookup("good"), emb))
			assert.Equal(t, []float64{-1, 0, 1}, mat.Col(nil, v.Lookup("film"), emb))
			assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, v.Lookup("plot"), emb))
			assert.Equal(t, []float64{0, 0, 0}, mat.Col(nil, PadID, emb))
		})
	}
}

func TestLoadPretrainedSkipsWord2VecHeader(t *testing.T) {
	dir := t.TempDir()
	writeVectors(t, dir, "w2v.txt", "3 3\n"+toyVectors)
	_, cov, err := LoadPretrained(toyVocab(), EmbeddingOptions{Name: "w2v", Dir: dir, Dim: 3}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, cov.Found)
}

func TestLoadPretrainedWidthMismatch(t *testing.T) {
	dir := t.TempDir()
	writeVectors(t, dir, "toy.txt", toyVectors)
	_, _, err := LoadPretrained(toyVocab(), EmbeddingOptions{Name: "toy", Dir: dir, Dim: 300}, nil)
	assert.ErrorIs(t, err, params.ErrConfiguration)
	assert.NotErrorIs(t, err, params.ErrEmbeddingUnavailable)
}

func TestLoadPretrainedUnavailable(t *testing.T) {
	dir := t.TempDir()
	_, _, err := LoadPretrained(toyVocab(), EmbeddingOptions{Name: "glove.6B.300d", Dir: dir, Dim: 300}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, params.ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, params.ErrConfiguration)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var eu *params.EmbeddingUnavailableError
	require.True(t, errors.As(err, &eu))
	assert.Equal(t, "glove.6B.300d", eu.Name)

	writeVectors(t, dir, "bad.txt", "good 0.1 x 0.3\n")
	_, _, err = LoadPretrained(toyVocab(), EmbeddingOptions{Name: "bad", Dir: dir, Dim: 3}, nil)
	assert.ErrorIs(t, err, params.ErrEmbeddingUnavailable)
}

func TestLoadPretrainedWithoutSource(t *testing.T) {
	v := toyVocab()
	emb, cov, err := LoadPretrained(v, EmbeddingOptions{Dim: 4, UnkInit: "random"}, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, cov.Found)
	assert.Equal(t, []float64{0, 0, 0, 0}, mat.Col(nil, PadID, emb))
	for j := 1; j < v.Size(); j++ {
		assert.NotEqual(t, []float64{0, 0, 0, 0}, mat.Col(nil, j, emb), "column %d", j)
	}

	_, _, err = LoadPretrained(v, EmbeddingOptions{Dim: 0}, nil)
	assert.ErrorIs(t, err, params.ErrConfiguration)
}

func TestEmbedSequence(t *testing.T) {
	emb := mat.NewDense(2, 3, []float64{
		0, 1, 2,
		10, 11, 12,
	})
	x := EmbedSequence(emb, []int{2, 0, 2})
	assert.Equal(t, []float64{2, 0, 2, 12, 10, 12}, x.RawMatrix().Data)
}
