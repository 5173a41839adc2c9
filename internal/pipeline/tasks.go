package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var errShuttingDown = errors.New("pipeline is shutting down")

// taskRegistry tracks detached work. At most one task runs per key; launching
// a task under a busy key cancels the previous holder.
type taskRegistry struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	base   context.Context
	stop   context.CancelFunc
	tasks  map[string]*task
	closed bool
}

type task struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func newTaskRegistry() *taskRegistry {
	base, stop := context.WithCancel(context.Background())
	return &taskRegistry{base: base, stop: stop, tasks: make(map[string]*task)}
}

func stageKey(projectID string) string {
	return projectID + "/stage"
}

func segmentTaskKey(projectID string, segmentID int) string {
	return projectID + "/" + segmentKey(segmentID)
}

func segmentPrefix(projectID string) string {
	return projectID + "/segment_"
}

func projectPrefix(projectID string) string {
	return projectID + "/"
}

// launch runs fn under key and returns a channel closed when fn returns.
func (r *taskRegistry) launch(key, id string, fn func(ctx context.Context)) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errShuttingDown
	}
	if prev, ok := r.tasks[key]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(r.base)
	t := &task{id: id, cancel: cancel, done: make(chan struct{})}
	r.tasks[key] = t
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(t.done)
		defer cancel()
		defer r.release(key, t)
		fn(ctx)
	}()
	return t.done, nil
}

func (r *taskRegistry) release(key string, t *task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tasks[key] == t {
		delete(r.tasks, key)
	}
}

// cancelIf cancels the task under key only while id still holds it.
func (r *taskRegistry) cancelIf(key, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok && t.id == id {
		t.cancel()
	}
}

// cancelPrefix cancels every task whose key starts with prefix and returns
// their completion channels.
func (r *taskRegistry) cancelPrefix(prefix string) []<-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	var done []<-chan struct{}
	for key, t := range r.tasks {
		if strings.HasPrefix(key, prefix) {
			t.cancel()
			done = append(done, t.done)
		}
	}
	return done
}

// wait blocks until every task has returned or ctx ends.
func (r *taskRegistry) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown refuses new tasks, cancels running ones, and waits for them.
func (r *taskRegistry) shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()
	return r.wait(ctx)
}

func waitAll(ctx context.Context, done []<-chan struct{}) error {
	for _, ch := range done {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
