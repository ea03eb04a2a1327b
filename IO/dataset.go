package IO

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/manningwu07/textcnn/params"
)

// Record is one row of the dataset file: free text and its label.
type Record struct {
	Text  string
	Label string
}

var header = []string{"text", "label"}

// ReadRecords reads a two-column CSV with a header row.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, params.DataErrorf("open dataset %s: %v", path, err)
	}
	defer f.Close()
	return readRecords(f, path)
}

func readRecords(r io.Reader, name string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2
	cr.LazyQuotes = true
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, params.DataErrorf("%s: missing header row", name)
		}
		return nil, params.DataErrorf("%s: header: %v", name, err)
	}
	var out []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, params.DataErrorf("%s: %v", name, err)
		}
		label := strings.TrimSpace(row[1])
		if label == "" {
			line, _ := cr.FieldPos(1)
			return nil, params.DataErrorf("%s:%d: empty label", name, line)
		}
		out = append(out, Record{Text: row[0], Label: label})
	}
	return out, nil
}

// WriteRecords writes records as CSV with a header, creating parent dirs.
func WriteRecords(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, r := range records {
		if err := w.Write([]string{r.Text, r.Label}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SplitTrainValid samples round(frac*n) rows for training in random order;
// the remaining rows keep their file order in the validation split.
func SplitTrainValid(records []Record, frac float64, rng *rand.Rand) (train, valid []Record) {
	n := len(records)
	k := int(math.Round(frac * float64(n)))
	if k > n {
		k = n
	}
	perm := rng.Perm(n)
	picked := make([]bool, n)
	train = make([]Record, 0, k)
	for _, i := range perm[:k] {
		picked[i] = true
		train = append(train, records[i])
	}
	valid = make([]Record, 0, n-k)
	for i, r := range records {
		if !picked[i] {
			valid = append(valid, r)
		}
	}
	return train, valid
}

// PrepareSplits makes sure the train/valid files exist, splitting the raw
// dataset when either file is missing or splitIfExists is set, and returns
// both splits read back from disk.
func PrepareSplits(data params.DataPars, out params.OutPars, rng *rand.Rand, log zerolog.Logger) (train, valid []Record, err error) {
	if !fileExists(out.TrainPath) || !fileExists(out.ValidPath) || data.SplitIfExists {
		records, err := ReadRecords(data.DataPath)
		if err != nil {
			return nil, nil, err
		}
		tr, va := SplitTrainValid(records, data.Frac, rng)
		log.Info().Str("data", data.DataPath).Int("train", len(tr)).Int("valid", len(va)).
			Msg("splitting original file to train/valid set")
		if err := WriteRecords(out.TrainPath, tr); err != nil {
			return nil, nil, err
		}
		if err := WriteRecords(out.ValidPath, va); err != nil {
			return nil, nil, err
		}
	} else {
		log.Info().Str("train", out.TrainPath).Str("valid", out.ValidPath).Msg("reusing existing split")
	}
	if train, err = ReadRecords(out.TrainPath); err != nil {
		return nil, nil, err
	}
	if valid, err = ReadRecords(out.ValidPath); err != nil {
		return nil, nil, err
	}
	if len(train) == 0 {
		return nil, nil, params.DataErrorf("train split %s is empty", out.TrainPath)
	}
	return train, valid, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
