package speechtext

import "github.com/kljensen/snowball"

// Analyzer reduces an inflected word to a canonical form used for lexicon
// membership tests. Implementations must be deterministic.
type Analyzer interface {
	NormalForm(token string) (string, error)
}

// SnowballAnalyzer stems Russian words. A stem is not a full dictionary
// form, but because lexicon keys pass through the same reduction the two
// sides stay comparable.
type SnowballAnalyzer struct{}

func (SnowballAnalyzer) NormalForm(token string) (string, error) {
	return snowball.Stem(token, "russian", false)
}
