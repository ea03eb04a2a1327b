package IO

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/params"
	"github.com/manningwu07/textcnn/utils"
)

// EmbeddingOptions names a pretrained vector set such as glove.6B.300d.
// The file is looked up in Dir as <Name>.txt, <Name>.txt.gz, <Name>.txt.zst
// or <Name>. An empty Name means no pretrained source.
type EmbeddingOptions struct {
	Name    string
	Dir     string
	Dim     int
	UnkInit string // "zero" or "random"
}

// Coverage reports how many vocabulary entries got a pretrained vector.
type Coverage struct {
	Found, Total int
}

// LoadPretrained builds the (dim x |V|) embedding table for v: column i is
// the vector of v.IDToToken[i]. The pad column is zero; tokens without a
// pretrained vector follow UnkInit.
func LoadPretrained(v Vocabulary, opts EmbeddingOptions, rng *rand.Rand) (*mat.Dense, Coverage, error) {
	if opts.Dim <= 0 {
		return nil, Coverage{}, params.ConfigErrorf("embedding dim must be > 0, got %d", opts.Dim)
	}
	emb := initEmbeddings(opts.Dim, v, opts.UnkInit, rng)
	cov := Coverage{Total: v.Size()}
	if opts.Name == "" {
		return emb, cov, nil
	}

	path, err := findVectors(opts.Dir, opts.Name)
	if err != nil {
		return nil, cov, params.NewEmbeddingUnavailable(opts.Name, opts.Dir, err)
	}
	rc, err := openVectors(path)
	if err != nil {
		return nil, cov, params.NewEmbeddingUnavailable(opts.Name, opts.Dir, err)
	}
	defer rc.Close()

	seen := make([]bool, v.Size())
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 1<<20), 1<<24)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		// word2vec-style "<count> <dim>" header
		if lineNo == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				continue
			}
		}
		if got := len(fields) - 1; got != opts.Dim {
			return nil, cov, params.ConfigErrorf("%s:%d: vector width %d, configured embed_dim %d", path, lineNo, got, opts.Dim)
		}
		id, ok := v.TokenToID[fields[0]]
		if !ok || id == PadID || seen[id] {
			continue
		}
		for i, f := range fields[1:] {
			x, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, cov, params.NewEmbeddingUnavailable(opts.Name, opts.Dir, fmt.Errorf("%s:%d: %w", path, lineNo, err))
			}
			emb.Set(i, id, x)
		}
		seen[id] = true
		cov.Found++
	}
	if err := sc.Err(); err != nil {
		return nil, cov, params.NewEmbeddingUnavailable(opts.Name, opts.Dir, err)
	}
	return emb, cov, nil
}

// Initialize embeddings for tokens without a pretrained vector.
// Shape: (dim x |V|)
func initEmbeddings(dim int, v Vocabulary, unkInit string, rng *rand.Rand) *mat.Dense {
	emb := mat.NewDense(dim, v.Size(), nil)
	if unkInit != "random" {
		return emb
	}
	for j := 0; j < v.Size(); j++ {
		if j == PadID {
			continue
		}
		emb.SetCol(j, utils.RandomArray(rng, dim, float64(dim)))
	}
	return emb
}

func findVectors(dir, name string) (string, error) {
	for _, ext := range []string{".txt", ".txt.gz", ".txt.zst", ""} {
		p := filepath.Join(dir, name+ext)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("no %s{.txt,.txt.gz,.txt.zst} in %s: %w", name, dir, os.ErrNotExist)
}

type multiCloser struct {
	io.Reader
	closers []func() error
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openVectors(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &multiCloser{Reader: gz, closers: []func() error{gz.Close, f.Close}}, nil
	case strings.HasSuffix(path, ".zst"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		return &multiCloser{Reader: dec, closers: []func() error{func() error { dec.Close(); return nil }, f.Close}}, nil
	default:
		return f, nil
	}
}

// EmbedSequence gathers the columns of emb for ids into a (dim x T) matrix.
func EmbedSequence(emb mat.Matrix, ids []int) *mat.Dense {
	d, _ := emb.Dims()
	T := len(ids)
	out := mat.NewDense(d, T, nil)
	for t, id := range ids {
		for i := 0; i < d; i++ {
			out.Set(i, t, emb.At(i, id))
		}
	}
	return out
}
