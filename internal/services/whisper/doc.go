// Package whisper runs whisper.cpp speech recognition over extracted segment
// audio and decodes its JSON transcript.
//
// Transcription is requested with a maximum segment length of one token split
// on words, so each transcript entry is normally a single word with its own
// timing. Entries that still hold several words are left for the caller to
// split.
package whisper
