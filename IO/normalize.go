package IO

import (
	"regexp"
	"strings"
)

var (
	reNotAllowed = regexp.MustCompile("[^A-Za-z0-9(),!?'`]")
	reSpaces     = regexp.MustCompile(`\s{2,}`)

	// Order matters: contractions first, then the punctuation that gets padded.
	cleanRules = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`'s`), " 's"},
		{regexp.MustCompile(`'ve`), " 've"},
		{regexp.MustCompile(`n't`), " n't"},
		{regexp.MustCompile(`'re`), " 're"},
		{regexp.MustCompile(`'d`), " 'd"},
		{regexp.MustCompile(`'ll`), " 'll"},
		{regexp.MustCompile(`,`), " , "},
		{regexp.MustCompile(`!`), " ! "},
		{regexp.MustCompile(`\(`), " ( "},
		{regexp.MustCompile(`\)`), " ) "},
		{regexp.MustCompile(`\?`), " ? "},
	}
)

// CleanText is the string cleaning applied to every record before
// tokenization: anything outside letters, digits and (),!?'` becomes a
// space, contractions are split off their stem, the marks , ! ( ) ? are
// spaced out, and whitespace is collapsed and trimmed.
//
// CleanText(CleanText(s)) == CleanText(s) for every s.
func CleanText(s string) string {
	s = reNotAllowed.ReplaceAllString(s, " ")
	for _, r := range cleanRules {
		s = r.re.ReplaceAllLiteralString(s, r.repl)
	}
	s = reSpaces.ReplaceAllLiteralString(s, " ")
	return strings.TrimSpace(s)
}
