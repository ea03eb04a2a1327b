package IO

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Don't stop!", "Do n't stop !"},
		{"It's great, really (honestly)?", "It 's great , really ( honestly ) ?"},
		{"we'll, we'd, they're, I've", "we 'll , we 'd , they 're , I 've"},
		{"  tabs\tand\nnewlines  ", "tabs and newlines"},
		{"café <b>bold</b>", "caf b bold b"},
		{"`quoted` 'single'", "`quoted` 'single'"},
		{"", ""},
		{"!!!", "! ! !"},
		{"$%^&*", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CleanText(c.in), "CleanText(%q)", c.in)
	}
}

func TestCleanTextIdempotent(t *testing.T) {
	corpus := []string{
		"Don't stop!",
		"I'd've thought it's the cast's fault... wasn't it?!",
		"(((nested))) ,,, ?? !!",
		"  \t\n ",
		"Ünïcödé and 日本語 mixed with ascii",
		"It's 10/10 -- would watch again :)",
		"n't 's 've 're 'd 'll",
		"He said \"no\", she said 'yes'",
		"a b c",
	}
	for _, s := range corpus {
		once := CleanText(s)
		assert.Equal(t, once, CleanText(once), "input %q", s)
	}
}
