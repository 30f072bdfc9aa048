// Package speechtext turns generated story text into SSML for speech
// synthesis: timing pauses at paragraph, sentence and clause boundaries,
// plus optional per-sentence prosody markup driven by an emotional lexicon.
//
// The whole package is pure: the same input text and lexicon always produce
// the same output.
package speechtext

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	breakParagraph = `<break time="1000ms"/>`
	breakLine      = `<break time="500ms"/>`
	breakSentence  = `<break time="400ms"/>`
	breakClause    = `<break time="200ms"/>`
)

var lowerRussian = cases.Lower(language.Russian)

type Pipeline struct {
	analyzer Analyzer
	lexicon  map[string]Directive
}

// New builds a pipeline around the embedded emotional lexicon. A nil
// analyzer disables enhanced mode entirely; PrepareEnhanced then silently
// degrades to the baseline transform.
func New(analyzer Analyzer) (*Pipeline, error) {
	lexicon, err := loadLexicon(analyzer)
	if err != nil {
		return nil, err
	}
	return &Pipeline{analyzer: analyzer, lexicon: lexicon}, nil
}

// Prepare applies the baseline transform: sanitize, insert pause markup,
// wrap in a single <speak> root.
func (p *Pipeline) Prepare(text string) string {
	return "<speak>" + InsertPauses(Sanitize(text)) + "</speak>"
}

// PrepareEnhanced additionally wraps sentences containing an emotionally
// marked word in a prosody element. The first lexicon match in left-to-right
// token order decides the directive for the whole sentence.
func (p *Pipeline) PrepareEnhanced(text string) string {
	if p.analyzer == nil || len(p.lexicon) == 0 {
		return p.Prepare(text)
	}

	sentences := splitSentences(Sanitize(text))
	if len(sentences) == 0 {
		return p.Prepare(text)
	}

	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if directive, ok := p.matchSentence(s.text); ok {
			parts = append(parts, directive.open()+s.text+"</prosody>"+s.terminal)
		} else {
			parts = append(parts, s.text+s.terminal)
		}
	}

	return "<speak>" + InsertPauses(strings.Join(parts, " ")) + "</speak>"
}

// matchSentence scans tokens left to right and returns the directive of the
// first word found in the lexicon. Tokens the analyzer cannot normalize are
// looked up raw.
func (p *Pipeline) matchSentence(sentence string) (Directive, bool) {
	for _, token := range tokenize(sentence) {
		form, err := p.analyzer.NormalForm(token)
		if err != nil || form == "" {
			form = token
		}
		if directive, ok := p.lexicon[form]; ok {
			return directive, true
		}
	}
	return Directive{}, false
}

// InsertPauses rewrites raw separators into SSML break elements in one
// left-to-right pass. The inserted markup never recreates the literal
// patterns the pass triggers on, so running it again over already annotated
// text changes nothing.
func InsertPauses(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\r':
			// normalized away, CRLF is handled by the '\n' branch
		case r == '\n':
			newlines := 1
			for i+1 < len(runes) && (runes[i+1] == '\n' || runes[i+1] == '\r') {
				if runes[i+1] == '\n' {
					newlines++
				}
				i++
			}
			if newlines > 1 {
				b.WriteString(breakParagraph)
			} else {
				b.WriteString(breakLine)
			}
		case (r == '.' || r == '!' || r == '?') && nextIsSpace(runes, i):
			b.WriteRune(r)
			b.WriteString(breakSentence)
			b.WriteRune(' ')
			i++
		case (r == ',' || r == ':') && nextIsSpace(runes, i):
			b.WriteRune(r)
			b.WriteString(breakClause)
			b.WriteRune(' ')
			i++
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func nextIsSpace(runes []rune, i int) bool {
	return i+1 < len(runes) && runes[i+1] == ' '
}

// Sanitize strips markup noise the generator tends to emit (markdown
// emphasis, emoji) while keeping the line structure the pause pass needs.
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	prevSpace := false

	for _, r := range raw {
		switch {
		case r == '*' || r == '_' || r == '#' || r == '`' || r == '~':
			continue
		case r == '\n' || r == '\r':
			b.WriteRune(r)
			prevSpace = false
		case r == '\t' || unicode.IsSpace(r):
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
		case unicode.IsControl(r):
			continue
		case unicode.In(r, unicode.So, unicode.Sk):
			// emoji and decorative symbols sound wrong when spoken
			continue
		default:
			b.WriteRune(r)
			prevSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

type sentence struct {
	text     string
	terminal string
}

// splitSentences cuts on sentence-ending punctuation, keeping each
// sentence's own terminal run ("!", "?!", "...") so reassembly does not
// flatten everything to a period.
func splitSentences(text string) []sentence {
	runes := []rune(text)
	var out []sentence
	start := 0

	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		end := i
		for end+1 < len(runes) && (runes[end+1] == '.' || runes[end+1] == '!' || runes[end+1] == '?') {
			end++
		}
		body := strings.TrimSpace(string(runes[start:i]))
		if body != "" {
			out = append(out, sentence{text: body, terminal: string(runes[i : end+1])})
		}
		start = end + 1
		i = end
	}

	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, sentence{text: rest, terminal: "."})
	}

	return out
}

// tokenize lowercases with Russian casing rules and splits on anything that
// is not a letter.
func tokenize(text string) []string {
	return strings.FieldsFunc(lowerRussian.String(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}
