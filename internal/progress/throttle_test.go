package progress

import (
	"reflect"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestThrottleLimitsRate(t *testing.T) {
	var got []int
	clock := &fakeClock{now: time.Unix(0, 0)}
	th := NewThrottle(time.Second, func(p int) { got = append(got, p) })
	th.now = clock.Now

	th.Update(3)
	th.Update(10)
	th.Update(20)
	clock.Advance(1100 * time.Millisecond)
	th.Update(30)
	th.Update(15)
	th.Update(100)

	want := []int{3, 30, 100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("emitted %v, want %v", got, want)
	}
}

func TestThrottleFlushSendsHeldValue(t *testing.T) {
	var got []int
	clock := &fakeClock{now: time.Unix(0, 0)}
	th := NewThrottle(time.Minute, func(p int) { got = append(got, p) })
	th.now = clock.Now

	th.Update(5)
	th.Update(60)
	th.Flush()
	th.Flush()

	if !reflect.DeepEqual(got, []int{5, 60}) {
		t.Fatalf("emitted %v", got)
	}
	if last, ok := th.Last(); !ok || last != 60 {
		t.Fatalf("Last = %d, %v", last, ok)
	}
}

func TestThrottleNeverRegresses(t *testing.T) {
	var got []int
	th := NewThrottle(0, func(p int) { got = append(got, p) })
	for _, p := range []int{10, 50, 40, 50, 120, 90} {
		th.Update(p)
	}
	if !reflect.DeepEqual(got, []int{10, 50, 100}) {
		t.Fatalf("emitted %v", got)
	}
}
