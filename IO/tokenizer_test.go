package IO

import (
	"fmt"
	"testing"

	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWordTokenizer(t *testing.T) {
	tok, err := NewWordTokenizer("en", true)
	require.NoError(t, err)

	got, err := tok.Tokenize("Do n't STOP , please !")
	require.NoError(t, err)
	assert.Equal(t, []string{"do", "n't", "stop", ",", "please", "!"}, got)

	got, err = tok.Tokenize("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWordTokenizerKeepsCase(t *testing.T) {
	tok, err := NewWordTokenizer("", false)
	require.NoError(t, err)
	got, err := tok.Tokenize("Great Movie")
	require.NoError(t, err)
	assert.Equal(t, []string{"Great", "Movie"}, got)
}

func TestWordTokenizerIsReusable(t *testing.T) {
	tok, err := NewWordTokenizer("en", true)
	require.NoError(t, err)
	require.NotNil(t, tok.pre)
	pre := tok.pre

	got := make([][]string, 64)
	p := pool.New().WithMaxGoroutines(8)
	for i := range got {
		p.Go(func() {
			toks, err := tok.Tokenize(fmt.Sprintf("Review %d  was\tFINE", i))
			if err == nil {
				got[i] = toks
			}
		})
	}
	p.Wait()

	for i, toks := range got {
		assert.Equal(t, []string{"review", fmt.Sprint(i), "was", "fine"}, toks)
	}
	assert.Same(t, pre, tok.pre)
}

func TestWordTokenizerRejectsLanguage(t *testing.T) {
	_, err := NewWordTokenizer("de", true)
	assert.Error(t, err)
}

func TestPreprocessCleansThenTokenizes(t *testing.T) {
	tok, err := NewWordTokenizer("en", true)
	require.NoError(t, err)
	ex, err := Preprocess([]Record{
		{Text: "It's <br/>GREAT!", Label: "positive"},
		{Text: "", Label: "negative"},
	}, tok)
	require.NoError(t, err)
	require.Len(t, ex, 2)
	assert.Equal(t, []string{"it", "'s", "br", "great", "!"}, ex[0].Tokens)
	assert.Equal(t, "positive", ex[0].Label)
	assert.Empty(t, ex[1].Tokens)
}
