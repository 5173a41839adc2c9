package store

import (
	"database/sql"
	"time"
)

const projectColumns = "id, name, status, current_stage, video_url, audio_url, video_start, video_end, audio_start, audio_end, " +
	"video_duration, audio_duration, merged_duration, segment_count, color, error_message, active_process_id, " +
	"initialize_process_id, download_process_id, merge_process_id, split_process_id, caption_process_id, " +
	"initialize_at, download_at, merge_at, split_at, caption_at, created_at, updated_at"

const segmentColumns = "project_id, segment_id, filename, start_seconds, duration_seconds, status, progress, process_id, " +
	"subtitle_text, output_file, error_message, started_at, completed_at, failed_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanProject(scanner rowScanner) (*Project, error) {
	var (
		p                                        Project
		status, stage                            string
		videoStart, videoEnd, audioStart, audioEnd sql.NullFloat64
		videoDur, audioDur, mergedDur            sql.NullFloat64
		errorMessage, activePID                  sql.NullString
		stagePIDs                                [5]sql.NullString
		stageAt                                  [5]sql.NullString
		createdRaw, updatedRaw                   string
	)
	if err := scanner.Scan(
		&p.ID, &p.Name, &status, &stage, &p.Sources.VideoURL, &p.Sources.AudioURL,
		&videoStart, &videoEnd, &audioStart, &audioEnd,
		&videoDur, &audioDur, &mergedDur, &p.SegmentCount, &p.Color, &errorMessage, &activePID,
		&stagePIDs[0], &stagePIDs[1], &stagePIDs[2], &stagePIDs[3], &stagePIDs[4],
		&stageAt[0], &stageAt[1], &stageAt[2], &stageAt[3], &stageAt[4],
		&createdRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}

	p.Status = Status(status)
	p.CurrentStage = Stage(stage)
	p.Sources.VideoStart = floatPtr(videoStart)
	p.Sources.VideoEnd = floatPtr(videoEnd)
	p.Sources.AudioStart = floatPtr(audioStart)
	p.Sources.AudioEnd = floatPtr(audioEnd)
	p.VideoDuration = videoDur.Float64
	p.AudioDuration = audioDur.Float64
	p.MergedDuration = mergedDur.Float64
	p.ErrorMessage = errorMessage.String
	p.ActiveProcessID = activePID.String
	p.Stages = make(map[Stage]StageRun, len(Stages))
	for i, stage := range Stages {
		run := StageRun{ProcessID: stagePIDs[i].String, CompletedAt: parseTimePtr(stageAt[i])}
		if run.ProcessID != "" || run.CompletedAt != nil {
			p.Stages[stage] = run
		}
	}
	p.CreatedAt = parseTime(createdRaw)
	p.UpdatedAt = parseTime(updatedRaw)
	return &p, nil
}

func scanSegment(scanner rowScanner) (*Segment, error) {
	var (
		seg                                       Segment
		status                                    string
		processID, subtitle, output, errorMessage sql.NullString
		startedRaw, completedRaw, failedRaw       sql.NullString
		updatedRaw                                string
	)
	if err := scanner.Scan(
		&seg.ProjectID, &seg.ID, &seg.Filename, &seg.Start, &seg.Duration, &status, &seg.Progress, &processID,
		&subtitle, &output, &errorMessage, &startedRaw, &completedRaw, &failedRaw, &updatedRaw,
	); err != nil {
		return nil, err
	}
	seg.Status = SegmentStatus(status)
	seg.ProcessID = processID.String
	seg.SubtitleText = subtitle.String
	seg.OutputFile = output.String
	seg.ErrorMessage = errorMessage.String
	seg.StartedAt = parseTimePtr(startedRaw)
	seg.CompletedAt = parseTimePtr(completedRaw)
	seg.FailedAt = parseTimePtr(failedRaw)
	seg.UpdatedAt = parseTime(updatedRaw)
	return &seg, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(raw sql.NullString) *time.Time {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	t := parseTime(raw.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func clampPercent(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}
