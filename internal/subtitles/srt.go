package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// WriteSRT renders lines as numbered SRT cues.
func WriteSRT(w io.Writer, lines []Line) error {
	bw := bufio.NewWriter(w)
	for i, line := range lines {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, formatTimestamp(line.Start), formatTimestamp(line.End), line.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteSRTFile writes lines to path.
func WriteSRTFile(path string, lines []Line) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create srt: %w", err)
	}
	if err := WriteSRT(f, lines); err != nil {
		_ = f.Close()
		return fmt.Errorf("write srt: %w", err)
	}
	return f.Close()
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	total /= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", total/3600, (total/60)%60, total%60, ms)
}

// ParseSRT reads cues back from SRT text. Malformed blocks are skipped.
func ParseSRT(content string) []Line {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	var lines []Line
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		rows := strings.Split(strings.TrimSpace(block), "\n")
		if len(rows) < 3 {
			continue
		}
		from, to, ok := strings.Cut(rows[1], "-->")
		if !ok {
			continue
		}
		start, errStart := parseTimestamp(from)
		end, errEnd := parseTimestamp(to)
		if errStart != nil || errEnd != nil {
			continue
		}
		lines = append(lines, Line{Text: strings.Join(rows[2:], "\n"), Start: start, End: end})
	}
	return lines
}

func parseTimestamp(value string) (float64, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), ".", ",")
	clock, millisText, ok := strings.Cut(value, ",")
	hms := strings.Split(clock, ":")
	if !ok || len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	secs, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(millisText)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+secs) + float64(millis)/1000, nil
}
