package progress

import "math"

// Child tags used for composite processes.
const (
	TagVideo = "video"
	TagAudio = "audio"
)

// ChildKey forms the progress key of a sub-task of parent.
func ChildKey(parent, tag string) string {
	return parent + "_" + tag
}

// Phase is a sub-range of a 0-100 stage scale.
type Phase struct {
	Start int
	End   int
}

// Map interpolates a phase-local percentage into the phase's range. The result
// is clamped to the range and rounded to the nearest integer.
func (p Phase) Map(sub float64) int {
	if math.IsNaN(sub) || sub < 0 {
		sub = 0
	}
	if sub > 100 {
		sub = 100
	}
	value := int(math.Round(float64(p.Start) + sub/100*float64(p.End-p.Start)))
	lo, hi := p.Start, p.End
	if lo > hi {
		lo, hi = hi, lo
	}
	return min(max(value, lo), hi)
}

// Report is the externally visible progress of a stage.
type Report struct {
	Percent  int            `json:"percent"`
	Children map[string]int `json:"children,omitempty"`
}

// StageProgress computes the visible percentage of a stage. The primary key's
// value wins when recorded; otherwise the maximum of every key in values is
// reported. Recorded child keys (primary_<tag>) are exposed by tag.
func StageProgress(values map[string]int, primary string, tags ...string) Report {
	var report Report
	if pct, ok := values[primary]; ok && primary != "" {
		report.Percent = pct
	} else {
		for _, pct := range values {
			report.Percent = max(report.Percent, pct)
		}
	}
	for _, tag := range tags {
		pct, ok := values[ChildKey(primary, tag)]
		if !ok {
			continue
		}
		if report.Children == nil {
			report.Children = make(map[string]int, len(tags))
		}
		report.Children[tag] = pct
	}
	return report
}
