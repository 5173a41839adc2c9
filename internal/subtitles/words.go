package subtitles

import "strings"

// Span is one transcript entry: a word, or a phrase when the recognizer did not
// resolve word timings.
type Span struct {
	Text  string
	Start float64
	End   float64
}

// Word is a single timed word.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Words flattens spans into timed words. Multi-word spans are split on
// whitespace and their words spread evenly across the span.
func Words(spans []Span) []Word {
	var words []Word
	for _, span := range spans {
		fields := strings.Fields(span.Text)
		if len(fields) == 0 {
			continue
		}
		start, end := span.Start, span.End
		if end < start {
			end = start
		}
		if len(fields) == 1 {
			words = append(words, Word{Text: fields[0], Start: start, End: end})
			continue
		}
		step := (end - start) / float64(len(fields))
		for i, text := range fields {
			words = append(words, Word{
				Text:  text,
				Start: start + step*float64(i),
				End:   start + step*float64(i+1),
			})
		}
	}
	return words
}
