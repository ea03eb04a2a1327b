package textcnn

import (
	"encoding/gob"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"gonum.org/v1/gonum/mat"

	"github.com/manningwu07/textcnn/params"
)

type tensorData struct {
	R, C int
	Data []float64
}

// checkpointData is the on-disk state dict: the architecture plus every
// parameter keyed by its Params() name.
type checkpointData struct {
	Config  Config
	Tensors map[string]tensorData
}

// Save writes the model's parameters to path as zstd-compressed gob. The
// file is written next to path and renamed over it, so a crash never leaves
// a truncated checkpoint behind.
func Save(m *TextCNN, path string) error {
	data := checkpointData{Config: m.Cfg, Tensors: map[string]tensorData{}}
	for _, p := range m.Params() {
		raw := mat.DenseCopyOf(p.Value).RawMatrix()
		data.Tensors[p.Name] = tensorData{R: raw.Rows, C: raw.Cols, Data: raw.Data}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return err
	}
	if err := gob.NewEncoder(zw).Encode(data); err != nil {
		zw.Close()
		f.Close()
		return fmt.Errorf("save %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readCheckpoint(path string) (checkpointData, error) {
	var data checkpointData
	f, err := os.Open(path)
	if err != nil {
		return data, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return data, err
	}
	defer zr.Close()
	if err := gob.NewDecoder(zr).Decode(&data); err != nil {
		return data, fmt.Errorf("load %s: %w", path, err)
	}
	return data, nil
}

// LoadInto restores a checkpoint into m. The saved architecture must match
// m's exactly; any mismatch is a configuration error and m is left as is.
func LoadInto(m *TextCNN, path string) error {
	data, err := readCheckpoint(path)
	if err != nil {
		return err
	}
	if err := sameArch(m.Cfg, data.Config); err != nil {
		return err
	}
	ps := m.Params()
	for _, p := range ps {
		td, ok := data.Tensors[p.Name]
		if !ok {
			return params.ConfigErrorf("checkpoint %s: missing tensor %q", path, p.Name)
		}
		r, c := p.Value.Dims()
		if td.R != r || td.C != c || len(td.Data) != r*c {
			return params.ConfigErrorf("checkpoint %s: %s is (%d x %d), model wants (%d x %d)", path, p.Name, td.R, td.C, r, c)
		}
	}
	for _, p := range ps {
		td := data.Tensors[p.Name]
		p.Value.Copy(mat.NewDense(td.R, td.C, td.Data))
	}
	return nil
}

// Load builds a fresh model from the architecture stored in the checkpoint.
func Load(path string, dev params.Device, rng *rand.Rand) (*TextCNN, error) {
	data, err := readCheckpoint(path)
	if err != nil {
		return nil, err
	}
	m, err := New(data.Config, nil, dev, rng)
	if err != nil {
		return nil, err
	}
	if err := LoadInto(m, path); err != nil {
		return nil, err
	}
	return m, nil
}

func sameArch(have, file Config) error {
	mismatch := have.VocabSize != file.VocabSize ||
		have.EmbedDim != file.EmbedDim ||
		have.DimChannel != file.DimChannel ||
		have.NumClass != file.NumClass ||
		len(have.KernelWins) != len(file.KernelWins)
	if !mismatch {
		for i := range have.KernelWins {
			if have.KernelWins[i] != file.KernelWins[i] {
				mismatch = true
			}
		}
	}
	if mismatch {
		return params.ConfigErrorf("checkpoint architecture %+v does not match model %+v", file, have)
	}
	return nil
}
