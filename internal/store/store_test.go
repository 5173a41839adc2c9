package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"reelcast/internal/store"
	"reelcast/internal/testsupport"
)

func newProject(t *testing.T, st *store.Store) *store.Project {
	t.Helper()
	project, err := st.CreateProject(context.Background(), store.NewProject{
		Name:    "demo",
		Sources: store.Sources{VideoURL: "https://example.com/v", AudioURL: "https://example.com/a", AudioEnd: store.Ptr(83.0)},
		Color:   "#F5C518",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return project
}

func TestCreateAndGetProject(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)

	if project.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if project.Status != store.StatusInitializing || project.CurrentStage != store.StageInitialize {
		t.Fatalf("unexpected initial state: %s/%s", project.Status, project.CurrentStage)
	}
	if project.Sources.AudioEnd == nil || *project.Sources.AudioEnd != 83 {
		t.Fatalf("expected audio end to round-trip, got %+v", project.Sources)
	}
	if project.Sources.VideoStart != nil {
		t.Fatalf("expected absent video start, got %v", *project.Sources.VideoStart)
	}
	if project.Progress == nil || len(project.Progress) != 0 {
		t.Fatalf("expected empty progress map, got %v", project.Progress)
	}

	missing, err := st.GetProject(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil project for unknown id, got %v %v", missing, err)
	}
}

func TestCreateProjectRequiresSources(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, err := st.CreateProject(context.Background(), store.NewProject{Sources: store.Sources{VideoURL: "v"}}); err == nil {
		t.Fatal("expected error when audio source missing")
	}
}

func TestSetProgressConcurrentKeysDoNotClobber(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	keys := []string{"pid_video", "pid_audio", "pid"}
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for pct := 0; pct <= 100; pct += 5 {
				if ok, err := st.SetProgress(ctx, project.ID, key, pct); err != nil || !ok {
					t.Errorf("SetProgress(%s, %d) = %v, %v", key, pct, ok, err)
					return
				}
			}
		}(key)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			if _, err := st.UpdateProject(ctx, project.ID, store.ProjectPatch{VideoDuration: store.Ptr(float64(i))}); err != nil {
				t.Errorf("UpdateProject: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	progress, err := st.ProgressMap(ctx, project.ID)
	if err != nil {
		t.Fatalf("ProgressMap: %v", err)
	}
	for _, key := range keys {
		if progress[key] != 100 {
			t.Fatalf("expected %s at 100, got %v", key, progress)
		}
	}
	reloaded, err := st.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if reloaded.Status != store.StatusInitializing {
		t.Fatalf("progress writes must not touch status, got %s", reloaded.Status)
	}
	if reloaded.VideoDuration != 19 {
		t.Fatalf("expected last duration write to survive, got %v", reloaded.VideoDuration)
	}
}

func TestSetProgressClampsAndReportsMissingProject(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	cases := []struct{ in, want int }{{-5, 0}, {42, 42}, {250, 100}}
	for _, tc := range cases {
		if _, err := st.SetProgress(ctx, project.ID, "k", tc.in); err != nil {
			t.Fatalf("SetProgress: %v", err)
		}
		got, ok, err := st.GetProgress(ctx, project.ID, "k")
		if err != nil || !ok || got != tc.want {
			t.Fatalf("SetProgress(%d) stored %d ok=%v err=%v, want %d", tc.in, got, ok, err, tc.want)
		}
	}

	ok, err := st.SetProgress(ctx, "missing", "k", 10)
	if err != nil {
		t.Fatalf("write to missing project must not error: %v", err)
	}
	if ok {
		t.Fatal("write to missing project must report failure")
	}
	if _, found, _ := st.GetProgress(ctx, "missing", "k"); found {
		t.Fatal("no row should exist for a missing project")
	}
}

func TestFinishStageGuardedByActiveProcess(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	if ok, err := st.BeginStage(ctx, project.ID, store.StageDownload, "first"); err != nil || !ok {
		t.Fatalf("BeginStage first: %v %v", ok, err)
	}
	if ok, err := st.BeginStage(ctx, project.ID, store.StageDownload, "second"); err != nil || !ok {
		t.Fatalf("BeginStage second: %v %v", ok, err)
	}

	done := store.StatusDownloaded
	ok, err := st.FinishStage(ctx, project.ID, "first", store.ProjectPatch{Status: &done})
	if err != nil {
		t.Fatalf("FinishStage: %v", err)
	}
	if ok {
		t.Fatal("superseded run must not finalize")
	}

	now := time.Now()
	ok, err = st.FinishStage(ctx, project.ID, "second", store.ProjectPatch{
		Status:         &done,
		VideoDuration:  store.Ptr(90.0),
		CompletedStage: store.StageDownload,
		CompletedAt:    now,
	})
	if err != nil || !ok {
		t.Fatalf("FinishStage second: %v %v", ok, err)
	}

	reloaded, _ := st.GetProject(ctx, project.ID)
	if reloaded.Status != store.StatusDownloaded {
		t.Fatalf("unexpected status %s", reloaded.Status)
	}
	run := reloaded.Stages[store.StageDownload]
	if run.ProcessID != "second" || run.CompletedAt == nil {
		t.Fatalf("unexpected stage run: %+v", run)
	}
	if reloaded.CurrentStage != store.StageDownload || reloaded.ActiveProcessID != "second" {
		t.Fatalf("unexpected stage bookkeeping: %s %s", reloaded.CurrentStage, reloaded.ActiveProcessID)
	}
}

func TestBeginStageClearsError(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	failed := store.StatusMergingError
	if _, err := st.UpdateProject(ctx, project.ID, store.ProjectPatch{Status: &failed, ErrorMessage: store.Ptr("boom")}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if _, err := st.BeginStage(ctx, project.ID, store.StageMerge, "retry"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	reloaded, _ := st.GetProject(ctx, project.ID)
	if reloaded.Status != store.StatusMerging || reloaded.ErrorMessage != "" {
		t.Fatalf("expected clean retry state, got %s %q", reloaded.Status, reloaded.ErrorMessage)
	}
}

func buildSegments(n int) []store.Segment {
	segments := make([]store.Segment, n)
	for i := range segments {
		segments[i] = store.Segment{ID: i + 1, Filename: fmt.Sprintf("segment_%03d.mp4", i+1), Start: float64(i * 60), Duration: 60}
	}
	return segments
}

func TestCompleteSplitReplacesSegmentList(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	if _, err := st.BeginStage(ctx, project.ID, store.StageSplit, "split-1"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	done := store.StatusSegmented
	if err := st.CompleteSplit(ctx, project.ID, "split-1", buildSegments(3), store.ProjectPatch{Status: &done}); err != nil {
		t.Fatalf("CompleteSplit: %v", err)
	}
	if _, err := st.BeginSegment(ctx, project.ID, 2, "cap"); err != nil {
		t.Fatalf("BeginSegment: %v", err)
	}

	if _, err := st.BeginStage(ctx, project.ID, store.StageSplit, "split-2"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if err := st.CompleteSplit(ctx, project.ID, "split-1", buildSegments(5), store.ProjectPatch{Status: &done}); !errors.Is(err, store.ErrStageSuperseded) {
		t.Fatalf("expected superseded error, got %v", err)
	}
	if err := st.CompleteSplit(ctx, project.ID, "split-2", buildSegments(2), store.ProjectPatch{Status: &done}); err != nil {
		t.Fatalf("CompleteSplit: %v", err)
	}

	segments, err := st.ListSegments(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected regenerated list of 2, got %d", len(segments))
	}
	for i, seg := range segments {
		if seg.ID != i+1 || seg.Status != store.SegmentPending || seg.Progress != 0 {
			t.Fatalf("unexpected segment %+v", seg)
		}
	}
	reloaded, _ := st.GetProject(ctx, project.ID)
	if reloaded.SegmentCount != 2 || reloaded.Status != store.StatusSegmented {
		t.Fatalf("unexpected project after split: count=%d status=%s", reloaded.SegmentCount, reloaded.Status)
	}
}

func TestUpdateSegmentIsolatedAndGuarded(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	if _, err := st.BeginStage(ctx, project.ID, store.StageSplit, "split"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if err := st.CompleteSplit(ctx, project.ID, "split", buildSegments(3), store.ProjectPatch{}); err != nil {
		t.Fatalf("CompleteSplit: %v", err)
	}

	var wg sync.WaitGroup
	for id := 1; id <= 3; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			pid := fmt.Sprintf("cap-%d", id)
			if _, err := st.BeginSegment(ctx, project.ID, id, pid); err != nil {
				t.Errorf("BeginSegment: %v", err)
				return
			}
			for pct := 0; pct <= 100; pct += 10 {
				if _, err := st.UpdateSegment(ctx, project.ID, id, pid, store.SegmentPatch{Progress: store.Ptr(pct)}); err != nil {
					t.Errorf("UpdateSegment: %v", err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	failed := store.SegmentFailed
	now := time.Now()
	if ok, err := st.UpdateSegment(ctx, project.ID, 2, "cap-2", store.SegmentPatch{Status: &failed, ErrorMessage: store.Ptr("stt failed"), FailedAt: &now}); err != nil || !ok {
		t.Fatalf("UpdateSegment fail: %v %v", ok, err)
	}
	if ok, _ := st.UpdateSegment(ctx, project.ID, 1, "stale", store.SegmentPatch{Status: &failed}); ok {
		t.Fatal("stale process must not update a segment")
	}

	segments, _ := st.ListSegments(ctx, project.ID)
	for _, seg := range segments {
		if seg.Progress != 100 {
			t.Fatalf("segment %d lost progress: %d", seg.ID, seg.Progress)
		}
		want := store.SegmentInProgress
		if seg.ID == 2 {
			want = store.SegmentFailed
		}
		if seg.Status != want {
			t.Fatalf("segment %d status %s, want %s", seg.ID, seg.Status, want)
		}
	}
	if segments[1].ErrorMessage != "stt failed" || segments[1].FailedAt == nil {
		t.Fatalf("failure details missing: %+v", segments[1])
	}
	count, err := st.CountSegmentsInProgress(ctx, project.ID)
	if err != nil || count != 2 {
		t.Fatalf("CountSegmentsInProgress = %d, %v", count, err)
	}
}

func TestReconcileInterrupted(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	merging := newProject(t, st)
	idle := newProject(t, st)

	if _, err := st.BeginStage(ctx, merging.ID, store.StageMerge, "m"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	ready := store.StatusInitialized
	if _, err := st.UpdateProject(ctx, idle.ID, store.ProjectPatch{Status: &ready}); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	projects, segments, err := st.ReconcileInterrupted(ctx)
	if err != nil {
		t.Fatalf("ReconcileInterrupted: %v", err)
	}
	if projects != 1 || segments != 0 {
		t.Fatalf("unexpected reconcile counts %d/%d", projects, segments)
	}
	reloaded, _ := st.GetProject(ctx, merging.ID)
	if reloaded.Status != store.StatusMergingError || reloaded.ErrorMessage != store.InterruptedReason {
		t.Fatalf("unexpected reconciled state %s %q", reloaded.Status, reloaded.ErrorMessage)
	}
	untouched, _ := st.GetProject(ctx, idle.ID)
	if untouched.Status != store.StatusInitialized {
		t.Fatalf("idle project changed: %s", untouched.Status)
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	project := newProject(t, st)
	ctx := context.Background()

	if _, err := st.SetProgress(ctx, project.ID, "k", 50); err != nil {
		t.Fatalf("SetProgress: %v", err)
	}
	if _, err := st.BeginStage(ctx, project.ID, store.StageSplit, "s"); err != nil {
		t.Fatalf("BeginStage: %v", err)
	}
	if err := st.CompleteSplit(ctx, project.ID, "s", buildSegments(2), store.ProjectPatch{}); err != nil {
		t.Fatalf("CompleteSplit: %v", err)
	}

	ok, err := st.DeleteProject(ctx, project.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteProject: %v %v", ok, err)
	}
	if progress, _ := st.ProgressMap(ctx, project.ID); len(progress) != 0 {
		t.Fatalf("expected progress rows removed, got %v", progress)
	}
	if segments, _ := st.ListSegments(ctx, project.ID); len(segments) != 0 {
		t.Fatalf("expected segments removed, got %d", len(segments))
	}
	if ok, _ := st.DeleteProject(ctx, project.ID); ok {
		t.Fatal("second delete should report missing project")
	}
}

func TestStatusHelpers(t *testing.T) {
	if store.StageMerge.Running() != store.StatusMerging || store.StageMerge.Failed() != store.StatusMergingError {
		t.Fatal("unexpected merge statuses")
	}
	if !store.StatusSegmenting.InProgress() || store.StatusSegmented.InProgress() {
		t.Fatal("unexpected InProgress classification")
	}
	if !store.StatusDownloadError.IsError() || store.StatusDownloaded.IsError() {
		t.Fatal("unexpected IsError classification")
	}
	if stage, ok := store.StatusCaptioned.StageOf(); !ok || stage != store.StageCaption {
		t.Fatalf("unexpected StageOf: %s %v", stage, ok)
	}
}
