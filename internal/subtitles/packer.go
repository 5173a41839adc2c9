package subtitles

import (
	"strings"
	"unicode/utf8"
)

// Default line limits.
const (
	DefaultMaxWords = 5
	DefaultMaxChars = 20
)

// Line is one caption cue.
type Line struct {
	Text  string
	Start float64
	End   float64
}

// Packer groups words into caption lines.
type Packer struct {
	// MaxWords bounds words per line.
	MaxWords int
	// MaxChars bounds the rune length of the words joined by single spaces.
	// A single longer word still gets a line of its own.
	MaxChars int
}

// NewPacker returns a packer with the given limits, substituting defaults for
// non-positive values.
func NewPacker(maxWords, maxChars int) Packer {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return Packer{MaxWords: maxWords, MaxChars: maxChars}
}

// Pack greedily fills lines in word order.
func (p Packer) Pack(words []Word) []Line {
	if len(words) == 0 {
		return nil
	}
	var (
		groups  [][]Word
		current []Word
		chars   int
	)
	for _, word := range words {
		n := utf8.RuneCountInString(word.Text)
		if len(current) > 0 && (len(current) >= p.MaxWords || chars+1+n > p.MaxChars) {
			groups = append(groups, current)
			current, chars = nil, 0
		}
		if len(current) > 0 {
			chars++
		}
		current = append(current, word)
		chars += n
	}
	groups = append(groups, current)

	lines := make([]Line, 0, len(groups))
	prevEnd := 0.0
	for i, group := range groups {
		start := max(group[0].Start, prevEnd)
		var end float64
		if i+1 < len(groups) {
			end = groups[i+1][0].Start
		} else {
			end = group[len(group)-1].End
		}
		end = max(end, start)
		lines = append(lines, Line{Text: joinWords(group), Start: start, End: end})
		prevEnd = end
	}
	return lines
}

func joinWords(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
