package progress

import (
	"sync"
	"time"
)

// Throttle forwards percentages to a callback at most once per interval. The
// first value and 100 always pass, and a value below the last forwarded one is
// dropped so observers never see progress regress.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	emit     func(int)
	now      func() time.Time

	sent     bool
	last     int
	lastAt   time.Time
	pending  int
	hasDirty bool
}

// NewThrottle returns a Throttle around emit. A non-positive interval forwards
// every non-regressing value.
func NewThrottle(interval time.Duration, emit func(int)) *Throttle {
	return &Throttle{interval: interval, emit: emit, now: time.Now}
}

// Update offers a new percentage.
func (t *Throttle) Update(percent int) {
	if t == nil || t.emit == nil {
		return
	}
	percent = min(max(percent, 0), 100)

	t.mu.Lock()
	if t.sent && percent <= t.last {
		t.mu.Unlock()
		return
	}
	now := t.now()
	if t.sent && percent < 100 && t.interval > 0 && now.Sub(t.lastAt) < t.interval {
		t.pending = percent
		t.hasDirty = true
		t.mu.Unlock()
		return
	}
	t.record(percent, now)
	t.mu.Unlock()
	t.emit(percent)
}

// Flush forwards the latest held-back value, if any.
func (t *Throttle) Flush() {
	if t == nil || t.emit == nil {
		return
	}
	t.mu.Lock()
	if !t.hasDirty || (t.sent && t.pending <= t.last) {
		t.hasDirty = false
		t.mu.Unlock()
		return
	}
	percent := t.pending
	t.record(percent, t.now())
	t.mu.Unlock()
	t.emit(percent)
}

// Last returns the most recently forwarded value.
func (t *Throttle) Last() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.sent
}

func (t *Throttle) record(percent int, at time.Time) {
	t.sent = true
	t.last = percent
	t.lastAt = at
	t.hasDirty = false
}
