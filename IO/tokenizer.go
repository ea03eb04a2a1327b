package IO

import (
	"fmt"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// Tokenizer turns cleaned text into tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// WordTokenizer splits on whitespace with sugarme's pre-tokenizer and
// optionally lowercases. CleanText has already spaced out punctuation and
// contractions, so whitespace boundaries are word boundaries.
type WordTokenizer struct {
	Lang  string
	Lower bool

	pre *pretokenizer.WhitespaceSplit
}

func NewWordTokenizer(lang string, lower bool) (*WordTokenizer, error) {
	if lang != "" && lang != "en" {
		return nil, fmt.Errorf("tokenizer: unsupported language %q", lang)
	}
	return &WordTokenizer{Lang: "en", Lower: lower, pre: pretokenizer.NewWhitespaceSplit()}, nil
}

func (w *WordTokenizer) Tokenize(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	pts, err := w.pre.PreTokenize(tk.NewPreTokenizedString(text))
	if err != nil {
		return nil, err
	}
	splits := pts.GetSplits(normalizer.OriginalTarget, tk.Byte)
	out := make([]string, 0, len(splits))
	for _, s := range splits {
		v := s.Value
		if v == "" {
			continue
		}
		if w.Lower {
			v = strings.ToLower(v)
		}
		out = append(out, v)
	}
	return out, nil
}

// Example is a cleaned, tokenized record.
type Example struct {
	Tokens []string
	Label  string
}

// Preprocess cleans and tokenizes every record.
func Preprocess(records []Record, tok Tokenizer) ([]Example, error) {
	out := make([]Example, len(records))
	for i, r := range records {
		toks, err := tok.Tokenize(CleanText(r.Text))
		if err != nil {
			return nil, fmt.Errorf("tokenize record %d: %w", i, err)
		}
		out[i] = Example{Tokens: toks, Label: r.Label}
	}
	return out, nil
}
