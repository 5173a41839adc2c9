// Package subtitles turns timed transcript text into caption lines and SRT.
//
// Words are packed greedily into lines bounded by a word count and a
// character count. Each line is shown from its first word's start until the
// next line's first word starts, and the last line until its last word ends,
// so lines never overlap and never go backwards in time.
package subtitles
