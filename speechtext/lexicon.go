package speechtext

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed lexicon.toml
var lexiconTOML []byte

// Directive is the prosody annotation applied to a sentence when one of its
// words carries an emotional marker.
type Directive struct {
	Rate   string `toml:"rate"`
	Pitch  string `toml:"pitch"`
	Volume string `toml:"volume,omitempty"`
}

func (d Directive) open() string {
	var b strings.Builder
	b.WriteString(`<prosody rate="`)
	b.WriteString(d.Rate)
	b.WriteString(`" pitch="`)
	b.WriteString(d.Pitch)
	b.WriteString(`"`)
	if d.Volume != "" {
		b.WriteString(` volume="`)
		b.WriteString(d.Volume)
		b.WriteString(`"`)
	}
	b.WriteString(">")
	return b.String()
}

type lexiconFile struct {
	Words map[string]Directive `toml:"words"`
}

// loadLexicon parses the embedded word table and keys it by the analyzer's
// normal form, so inflected story words and dictionary-form lexicon entries
// meet in the same namespace. Without an analyzer the raw keys are kept.
func loadLexicon(analyzer Analyzer) (map[string]Directive, error) {
	var file lexiconFile
	if err := toml.Unmarshal(lexiconTOML, &file); err != nil {
		return nil, fmt.Errorf("could not parse emotional lexicon: %w", err)
	}

	lexicon := make(map[string]Directive, len(file.Words))
	for word, directive := range file.Words {
		key := lowerRussian.String(word)
		if analyzer != nil {
			if form, err := analyzer.NormalForm(key); err == nil && form != "" {
				key = form
			}
		}
		lexicon[key] = directive
	}

	return lexicon, nil
}
