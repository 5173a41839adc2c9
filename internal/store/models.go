package store

import (
	"strings"
	"time"
)

// Stage names one top-level pipeline phase applied to a whole project.
type Stage string

const (
	StageInitialize Stage = "initialize"
	StageDownload   Stage = "download"
	StageMerge      Stage = "merge"
	StageSplit      Stage = "split"
	StageCaption    Stage = "caption"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{StageInitialize, StageDownload, StageMerge, StageSplit, StageCaption}

// Status represents the lifecycle of a project.
type Status string

const (
	StatusInitializing      Status = "initializing"
	StatusInitialized       Status = "initialized"
	StatusInitializingError Status = "initializing_error"
	StatusDownloading       Status = "downloading"
	StatusDownloaded        Status = "downloaded"
	StatusDownloadError     Status = "download_error"
	StatusMerging           Status = "merging"
	StatusMerged            Status = "merged"
	StatusMergingError      Status = "merging_error"
	StatusSegmenting        Status = "segmenting"
	StatusSegmented         Status = "segmented"
	StatusSegmentingError   Status = "segmenting_error"
	StatusCaptioning        Status = "captioning"
	StatusCaptioned         Status = "captioned"
	StatusCaptioningError   Status = "captioning_error"
)

// InterruptedReason is recorded when a daemon restart finds work with no live worker.
const InterruptedReason = "interrupted by daemon restart"

type stageStatuses struct {
	running Status
	done    Status
	failed  Status
}

var statusesByStage = map[Stage]stageStatuses{
	StageInitialize: {StatusInitializing, StatusInitialized, StatusInitializingError},
	StageDownload:   {StatusDownloading, StatusDownloaded, StatusDownloadError},
	StageMerge:      {StatusMerging, StatusMerged, StatusMergingError},
	StageSplit:      {StatusSegmenting, StatusSegmented, StatusSegmentingError},
	StageCaption:    {StatusCaptioning, StatusCaptioned, StatusCaptioningError},
}

// Running returns the in-progress status for the stage.
func (s Stage) Running() Status { return statusesByStage[s].running }

// Done returns the terminal-success status for the stage.
func (s Stage) Done() Status { return statusesByStage[s].done }

// Failed returns the error status for the stage.
func (s Stage) Failed() Status { return statusesByStage[s].failed }

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	_, ok := statusesByStage[s]
	return ok
}

// InProgress reports whether the status denotes a running stage.
func (s Status) InProgress() bool {
	for _, st := range statusesByStage {
		if st.running == s {
			return true
		}
	}
	return false
}

// IsError reports whether the status is a stage error state.
func (s Status) IsError() bool {
	return strings.HasSuffix(string(s), "_error")
}

// StageOf returns the stage a status belongs to.
func (s Status) StageOf() (Stage, bool) {
	for stage, st := range statusesByStage {
		if st.running == s || st.done == s || st.failed == s {
			return stage, true
		}
	}
	return "", false
}

// Sources describes the two media locations and optional trim ranges, in seconds.
type Sources struct {
	VideoURL   string   `json:"videoUrl"`
	AudioURL   string   `json:"audioUrl"`
	VideoStart *float64 `json:"videoStart,omitempty"`
	VideoEnd   *float64 `json:"videoEnd,omitempty"`
	AudioStart *float64 `json:"audioStart,omitempty"`
	AudioEnd   *float64 `json:"audioEnd,omitempty"`
}

// StageRun records the latest process identifier and completion time for a stage.
type StageRun struct {
	ProcessID   string     `json:"processId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Project is one processing job.
type Project struct {
	ID              string             `json:"id"`
	Name            string             `json:"name,omitempty"`
	Status          Status             `json:"status"`
	CurrentStage    Stage              `json:"currentStage"`
	Sources         Sources            `json:"sources"`
	VideoDuration   float64            `json:"videoDuration,omitempty"`
	AudioDuration   float64            `json:"audioDuration,omitempty"`
	MergedDuration  float64            `json:"mergedDuration,omitempty"`
	SegmentCount    int                `json:"segmentCount"`
	Color           string             `json:"color"`
	ErrorMessage    string             `json:"error,omitempty"`
	ActiveProcessID string             `json:"activeProcessId,omitempty"`
	Stages          map[Stage]StageRun `json:"stages,omitempty"`
	Progress        map[string]int     `json:"progress"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// StageProcessID returns the process identifier last recorded for stage.
func (p *Project) StageProcessID(stage Stage) string {
	if p == nil || p.Stages == nil {
		return ""
	}
	return p.Stages[stage].ProcessID
}

// ProjectPatch lists the project columns a mutator wants to change. Nil fields
// are left untouched so concurrent writers never overwrite each other's values.
type ProjectPatch struct {
	Status         *Status
	ErrorMessage   *string
	VideoDuration  *float64
	AudioDuration  *float64
	MergedDuration *float64
	SegmentCount   *int
	// CompletedStage stamps <stage>_at with CompletedAt when set.
	CompletedStage Stage
	CompletedAt    time.Time
}

// SegmentStatus represents the lifecycle of one segment's caption run.
type SegmentStatus string

const (
	SegmentPending    SegmentStatus = "pending"
	SegmentInProgress SegmentStatus = "in-progress"
	SegmentCompleted  SegmentStatus = "completed"
	SegmentFailed     SegmentStatus = "failed"
)

// Segment is one fixed-duration slice of the merged media.
type Segment struct {
	ProjectID    string        `json:"projectId"`
	ID           int           `json:"id"`
	Filename     string        `json:"filename"`
	Start        float64       `json:"start"`
	Duration     float64       `json:"duration"`
	Status       SegmentStatus `json:"captioningStatus"`
	Progress     int           `json:"captioningProgress"`
	ProcessID    string        `json:"processId,omitempty"`
	SubtitleText string        `json:"subtitleText,omitempty"`
	OutputFile   string        `json:"outputFile,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
	StartedAt    *time.Time    `json:"startedAt,omitempty"`
	CompletedAt  *time.Time    `json:"completedAt,omitempty"`
	FailedAt     *time.Time    `json:"failedAt,omitempty"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// SegmentPatch lists the segment columns a caption run wants to change.
type SegmentPatch struct {
	Status       *SegmentStatus
	Progress     *int
	SubtitleText *string
	OutputFile   *string
	ErrorMessage *string
	CompletedAt  *time.Time
	FailedAt     *time.Time
}

// Ptr returns a pointer to v; handy for building patches.
func Ptr[T any](v T) *T { return &v }
