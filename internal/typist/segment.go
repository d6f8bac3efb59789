package typist

import (
	"strings"
	"unicode/utf8"

	"ghostkeys/internal/injector"
)

// A segment is either a run of printable text injected verbatim or a single
// named key tap. Newlines and tabs are tapped rather than typed because many
// applications treat the literal characters and the keys differently.
type segment struct {
	text string
	key  string
}

// segments splits text into typeable units. Line endings are normalized to
// "\n" first so Windows-style input does not produce a stray carriage return.
func segments(text string) []segment {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	var segs []segment
	var run strings.Builder

	flush := func() {
		if run.Len() > 0 {
			segs = append(segs, segment{text: run.String()})
			run.Reset()
		}
	}

	for _, r := range normalized {
		switch r {
		case '\n':
			flush()
			segs = append(segs, segment{key: injector.KeyEnter})
		case '\t':
			flush()
			segs = append(segs, segment{key: injector.KeyTab})
		default:
			run.WriteRune(r)
		}
	}
	flush()

	return segs
}

// countUnits returns the total number of injection units across segments:
// one per rune of text, one per key tap. Progress is reported against this.
func countUnits(segs []segment) int {
	total := 0
	for _, s := range segs {
		if s.key != "" {
			total++
		} else {
			total += utf8.RuneCountInString(s.text)
		}
	}
	return total
}
