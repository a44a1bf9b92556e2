package netsim

import (
	"testing"
	"time"
)

func TestSchedulerOrdering(t *testing.T) {
	s := NewScheduler()
	var got []int
	s.Schedule(30*time.Millisecond, func() { got = append(got, 30) })
	s.Schedule(10*time.Millisecond, func() { got = append(got, 10) })
	s.Schedule(20*time.Millisecond, func() { got = append(got, 20) })
	s.Drain()
	if len(got) != 3 || got[0] != 10 || got[1] != 20 || got[2] != 30 {
		t.Fatalf("order = %v", got)
	}
	if s.Now() != 30*time.Millisecond {
		t.Fatalf("now = %s", s.Now())
	}
}

func TestSchedulerTieBreaksFIFO(t *testing.T) {
	s := NewScheduler()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		s.Schedule(time.Millisecond, func() { got = append(got, i) })
	}
	s.Drain()
	for i, v := range got {
		if v != i {
			t.Fatalf("tie order = %v", got)
		}
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	fired := false
	ev := s.Schedule(time.Millisecond, func() { fired = true })
	ev.Cancel()
	ev.Cancel() // canceling twice is fine
	s.Drain()
	if fired {
		t.Fatalf("canceled event fired")
	}
}

func TestSchedulerRunUntil(t *testing.T) {
	s := NewScheduler()
	var fired []time.Duration
	s.Schedule(5*time.Millisecond, func() { fired = append(fired, s.Now()) })
	s.Schedule(50*time.Millisecond, func() { fired = append(fired, s.Now()) })
	s.RunUntil(10 * time.Millisecond)
	if len(fired) != 1 || fired[0] != 5*time.Millisecond {
		t.Fatalf("fired = %v", fired)
	}
	if s.Now() != 10*time.Millisecond {
		t.Fatalf("now = %s", s.Now())
	}
	s.RunUntil(100 * time.Millisecond)
	if len(fired) != 2 {
		t.Fatalf("second event did not fire")
	}
}

func TestSchedulerNestedSchedule(t *testing.T) {
	s := NewScheduler()
	var at time.Duration
	s.Schedule(time.Millisecond, func() {
		s.Schedule(2*time.Millisecond, func() { at = s.Now() })
	})
	s.RunUntil(10 * time.Millisecond)
	if at != 3*time.Millisecond {
		t.Fatalf("nested event at %s", at)
	}
}
