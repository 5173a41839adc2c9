package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegistryLaunchSupersedesSameKey(t *testing.T) {
	r := newTaskRegistry()
	firstCanceled := make(chan struct{})
	if _, err := r.launch("p1/stage", "a", func(ctx context.Context) {
		<-ctx.Done()
		close(firstCanceled)
	}); err != nil {
		t.Fatalf("launch: %v", err)
	}
	release := make(chan struct{})
	second, err := r.launch("p1/stage", "b", func(ctx context.Context) { <-release })
	if err != nil {
		t.Fatalf("launch: %v", err)
	}

	select {
	case <-firstCanceled:
	case <-time.After(5 * time.Second):
		t.Fatal("first task was not canceled")
	}
	close(release)
	<-second

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if len(r.tasks) != 0 {
		t.Fatalf("expected finished tasks to be released, found %d", len(r.tasks))
	}
}

func TestRegistryCancelPrefix(t *testing.T) {
	r := newTaskRegistry()
	block := func(ctx context.Context) { <-ctx.Done() }
	for _, key := range []string{segmentTaskKey("p1", 1), segmentTaskKey("p1", 2), stageKey("p1"), segmentTaskKey("p2", 1)} {
		if _, err := r.launch(key, key, block); err != nil {
			t.Fatalf("launch %s: %v", key, err)
		}
	}

	done := r.cancelPrefix(segmentPrefix("p1"))
	if len(done) != 2 {
		t.Fatalf("expected 2 segment tasks canceled, got %d", len(done))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := waitAll(ctx, done); err != nil {
		t.Fatalf("waitAll: %v", err)
	}

	r.cancelIf(stageKey("p1"), "someone-else")
	r.mu.Lock()
	_, stillThere := r.tasks[stageKey("p1")]
	r.mu.Unlock()
	if !stillThere {
		t.Fatal("cancelIf must ignore a task held by another id")
	}

	if err := r.shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if _, err := r.launch("p3/stage", "x", block); !errors.Is(err, errShuttingDown) {
		t.Fatalf("expected launch refusal after shutdown, got %v", err)
	}
}
