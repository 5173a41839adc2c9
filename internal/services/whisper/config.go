package whisper

import (
	"strings"

	"golang.org/x/text/language"
)

// Config captures runtime settings for whisper.cpp.
type Config struct {
	Binary string
	// Model is the path to a ggml model file.
	Model string
	// Language is a BCP 47 tag or "auto".
	Language string
}

// DefaultBinary is the whisper.cpp command line tool.
const DefaultBinary = "whisper-cli"

// NormalizeLanguage reduces a BCP 47 tag to the base language code whisper.cpp
// expects. Empty and unparseable input falls back to "auto".
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" || strings.EqualFold(tag, "auto") {
		return "auto"
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return "auto"
	}
	base, confidence := parsed.Base()
	if confidence == language.No {
		return "auto"
	}
	return base.String()
}
