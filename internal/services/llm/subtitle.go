package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SubtitlePrompt instructs the model to summarize a transcript excerpt.
const SubtitlePrompt = `You write short on-screen subtitles for video clips.
Given the transcript of one clip, reply with JSON {"subtitle": "..."}.
The subtitle summarizes what the clip is about in at most 8 words.
Do not use quotes, hashtags, or emoji. Do not end with a period.`

const maxSubtitleRunes = 80

// GenerateSubtitle asks the model for a one-line subtitle describing
// transcript. The title gives the model context only.
func (c *Client) GenerateSubtitle(ctx context.Context, title, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("llm subtitle: transcript required")
	}
	var user strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&user, "Clip title: %s\n", title)
	}
	user.WriteString("Transcript:\n")
	user.WriteString(transcript)

	content, err := c.CompleteJSON(ctx, SubtitlePrompt, user.String())
	if err != nil {
		return "", err
	}
	var parsed struct {
		Subtitle string `json:"subtitle"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return "", fmt.Errorf("llm subtitle: parse payload: %w", err)
	}
	return cleanSubtitle(parsed.Subtitle), nil
}

func cleanSubtitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, ".")
	if utf8.RuneCountInString(s) > maxSubtitleRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxSubtitleRunes]))
	}
	return s
}
